package tensor

import "fmt"

// Tensor is a dense (batch, heads, seq, dim) float32 array in row-major order.
type Tensor struct {
	Batch, Heads, Seq, Dim int
	Data                   []float32
}

// New allocates a zeroed tensor.
func New(batch, heads, seq, dim int) *Tensor {
	if batch < 0 || heads < 0 || seq < 0 || dim < 0 {
		panic("negative dimension for tensor")
	}
	return &Tensor{
		Batch: batch,
		Heads: heads,
		Seq:   seq,
		Dim:   dim,
		Data:  make([]float32, batch*heads*seq*dim),
	}
}

// FromData wraps data without copying.
func FromData(batch, heads, seq, dim int, data []float32) (*Tensor, error) {
	if batch < 0 || heads < 0 || seq < 0 || dim < 0 {
		return nil, errNegativeDim
	}
	if batch*heads*seq*dim != len(data) {
		return nil, fmt.Errorf("%w: shape [%d %d %d %d] needs %d values, got %d",
			errDataSizeMismatch, batch, heads, seq, dim, batch*heads*seq*dim, len(data))
	}
	return &Tensor{Batch: batch, Heads: heads, Seq: seq, Dim: dim, Data: data}, nil
}

// FromNested copies a [batch][heads][seq][dim] slice into a tensor. Every
// inner slice at the same depth must have the same length.
func FromNested(v [][][][]float32) (*Tensor, error) {
	batch := len(v)
	var heads, seq, dim int
	if batch > 0 {
		heads = len(v[0])
		if heads > 0 {
			seq = len(v[0][0])
			if seq > 0 {
				dim = len(v[0][0][0])
			}
		}
	}
	t := New(batch, heads, seq, dim)
	off := 0
	for b := range v {
		if len(v[b]) != heads {
			return nil, fmt.Errorf("%w: batch %d has %d heads, want %d", errRagged, b, len(v[b]), heads)
		}
		for h := range v[b] {
			if len(v[b][h]) != seq {
				return nil, fmt.Errorf("%w: batch %d head %d has %d positions, want %d", errRagged, b, h, len(v[b][h]), seq)
			}
			for s := range v[b][h] {
				if len(v[b][h][s]) != dim {
					return nil, fmt.Errorf("%w: batch %d head %d position %d has %d values, want %d", errRagged, b, h, s, len(v[b][h][s]), dim)
				}
				off += copy(t.Data[off:], v[b][h][s])
			}
		}
	}
	return t, nil
}

// Nested returns a copy of t as a [batch][heads][seq][dim] slice.
func (t *Tensor) Nested() [][][][]float32 {
	out := make([][][][]float32, t.Batch)
	for b := range out {
		out[b] = make([][][]float32, t.Heads)
		for h := range out[b] {
			m := t.Head(b, h)
			out[b][h] = make([][]float32, t.Seq)
			for s := range out[b][h] {
				out[b][h][s] = append([]float32(nil), m.Row(s)...)
			}
		}
	}
	return out
}

// Shape returns [batch, heads, seq, dim].
func (t *Tensor) Shape() [4]int {
	return [4]int{t.Batch, t.Heads, t.Seq, t.Dim}
}

// Head returns the (seq, dim) matrix of one batch element and head. The
// matrix shares storage with t.
func (t *Tensor) Head(b, h int) Mat {
	if b < 0 || b >= t.Batch || h < 0 || h >= t.Heads {
		panic("head index out of range")
	}
	size := t.Seq * t.Dim
	start := (b*t.Heads + h) * size
	return Mat{
		R:      t.Seq,
		C:      t.Dim,
		Stride: t.Dim,
		Data:   t.Data[start : start+size],
	}
}

// At returns the element at (b, h, s, d).
func (t *Tensor) At(b, h, s, d int) float32 {
	return t.Data[t.offset(b, h, s, d)]
}

// Set stores v at (b, h, s, d).
func (t *Tensor) Set(b, h, s, d int, v float32) {
	t.Data[t.offset(b, h, s, d)] = v
}

func (t *Tensor) offset(b, h, s, d int) int {
	if b < 0 || b >= t.Batch || h < 0 || h >= t.Heads || s < 0 || s >= t.Seq || d < 0 || d >= t.Dim {
		panic("tensor index out of range")
	}
	return ((b*t.Heads+h)*t.Seq+s)*t.Dim + d
}

// FillRand fills every head with reproducible pseudo-random values.
func (t *Tensor) FillRand(seed int64, scale float32) {
	for b := range t.Batch {
		for h := range t.Heads {
			m := t.Head(b, h)
			FillRand(&m, seed+int64(b*t.Heads+h)*7919, scale)
		}
	}
}
