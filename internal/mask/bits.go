package mask

import "fmt"

// PackedLen is the number of bytes AppendBits writes for a capacity×capacity
// mask.
func PackedLen(capacity int) int {
	return (capacity*capacity + 7) / 8
}

// AppendBits appends the mask to dst as row-major bits, least significant bit
// first within each byte.
func (m *Mask) AppendBits(dst []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, PackedLen(m.n))...)
	out := dst[start:]
	bit := 0
	for i := range m.n {
		for _, ok := range m.data[i*m.stride : i*m.stride+m.n] {
			if ok {
				out[bit>>3] |= 1 << (bit & 7)
			}
			bit++
		}
	}
	return dst
}

// FromBits decodes a mask written by AppendBits. The bits must be exactly the
// band Build(capacity, window) would produce.
func FromBits(capacity, window int, bits []byte) (*Mask, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", ErrInvalidParameter, window)
	}
	if err := checkCapacity(capacity); err != nil {
		return nil, err
	}
	if len(bits) != PackedLen(capacity) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrNotBanded, len(bits), PackedLen(capacity))
	}
	w := EffectiveWindow(capacity, window)
	m := &Mask{
		n:      capacity,
		window: w,
		stride: capacity,
		data:   make([]bool, capacity*capacity),
	}
	for i := range capacity {
		lo, hi := span(i, w)
		for j := range capacity {
			bit := i*capacity + j
			set := bits[bit>>3]&(1<<(bit&7)) != 0
			if set != (j >= lo && j < hi) {
				return nil, fmt.Errorf("%w: row %d column %d", ErrNotBanded, i, j)
			}
			m.data[bit] = set
		}
	}
	// Padding bits past the last entry must be clear.
	if tail := capacity * capacity; tail&7 != 0 {
		if bits[len(bits)-1]>>(tail&7) != 0 {
			return nil, fmt.Errorf("%w: trailing bits set", ErrNotBanded)
		}
	}
	return m, nil
}
