// Package mask builds the banded causal attention mask.
//
// Row i of a mask with capacity S and window W permits exactly the key
// columns [max(0, i-W+1), i]. A window larger than the capacity is clamped to
// the capacity, which yields the plain lower-triangular causal mask.
package mask

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// MaxCapacity is the largest capacity Build accepts. A mask stores one byte
// per entry, so the largest mask takes 4 GiB.
const MaxCapacity = 1 << 16

var (
	// ErrInvalidParameter is returned when the capacity or window cannot
	// describe a mask.
	ErrInvalidParameter = errors.New("invalid mask parameter")
	// ErrNotBanded is returned by FromBits when the bit pattern is not the
	// band implied by its capacity and window.
	ErrNotBanded = errors.New("mask bits are not a causal band")
)

// Mask is an immutable square boolean matrix indexed [query][key].
//
// A Mask may be a view into a larger one (see Slice); views share storage
// with their parent and are equally read-only.
type Mask struct {
	n      int
	window int
	stride int
	data   []bool
}

// Build returns the S×S mask for the given capacity and window.
func Build(capacity, window int) (*Mask, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", ErrInvalidParameter, window)
	}
	if err := checkCapacity(capacity); err != nil {
		return nil, err
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
		row := m.data[i*capacity+lo : i*capacity+hi]
		for j := range row {
			row[j] = true
		}
	}
	return m, nil
}

func checkCapacity(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("%w: sequence capacity must be at least 1, got %d", ErrInvalidParameter, capacity)
	}
	// The second test matters where int is 32 bits wide.
	if capacity > MaxCapacity || capacity > math.MaxInt/capacity {
		return fmt.Errorf("%w: sequence capacity %d exceeds limit %d", ErrInvalidParameter, capacity, MaxCapacity)
	}
	return nil
}

// EffectiveWindow clamps window to capacity.
func EffectiveWindow(capacity, window int) int {
	if window > capacity {
		return capacity
	}
	return window
}

// ExpectedCount is the number of true entries in Build(capacity, window) for
// valid arguments.
func ExpectedCount(capacity, window int) int {
	w := EffectiveWindow(capacity, window)
	return capacity*w - w*(w-1)/2
}

func span(i, window int) (lo, hi int) {
	lo = i - window + 1
	if lo < 0 {
		lo = 0
	}
	return lo, i + 1
}

// Size returns the number of rows (and columns).
func (m *Mask) Size() int { return m.n }

// Window returns the effective, clamped window.
func (m *Mask) Window() int { return m.window }

// At reports whether query i may attend to key j. Indices outside the mask
// are never permitted.
func (m *Mask) At(i, j int) bool {
	if i < 0 || j < 0 || i >= m.n || j >= m.n {
		return false
	}
	return m.data[i*m.stride+j]
}

// Span returns the permitted key columns of row i as the half-open range
// [lo, hi). Unlike At, it panics when i is outside [0, Size()).
func (m *Mask) Span(i int) (lo, hi int) {
	if i < 0 || i >= m.n {
		panic("mask row index out of range")
	}
	return span(i, m.window)
}

// Row returns a copy of row i. It panics when i is outside [0, Size()).
func (m *Mask) Row(i int) []bool {
	if i < 0 || i >= m.n {
		panic("mask row index out of range")
	}
	out := make([]bool, m.n)
	copy(out, m.data[i*m.stride:i*m.stride+m.n])
	return out
}

// RowSums returns the number of permitted keys per query row.
func (m *Mask) RowSums() []int {
	sums := make([]int, m.n)
	for i := range m.n {
		for _, ok := range m.data[i*m.stride : i*m.stride+m.n] {
			if ok {
				sums[i]++
			}
		}
	}
	return sums
}

// ColSums returns the number of queries permitted to see each key column.
func (m *Mask) ColSums() []int {
	sums := make([]int, m.n)
	for i := range m.n {
		for j, ok := range m.data[i*m.stride : i*m.stride+m.n] {
			if ok {
				sums[j]++
			}
		}
	}
	return sums
}

// Count returns the total number of true entries.
func (m *Mask) Count() int {
	total := 0
	for _, s := range m.RowSums() {
		total += s
	}
	return total
}

// Slice returns the top-left n×n view of m without copying. A view keeps the
// parent's window, so it equals Build(n, m.Window()).
func (m *Mask) Slice(n int) (*Mask, error) {
	if n < 0 || n > m.n {
		return nil, fmt.Errorf("%w: slice size %d outside [0, %d]", ErrInvalidParameter, n, m.n)
	}
	if n == m.n {
		return m, nil
	}
	w := m.window
	if w > n {
		w = n
	}
	return &Mask{
		n:      n,
		window: w,
		stride: m.stride,
		data:   m.data,
	}, nil
}

// Equal reports whether both masks have the same shape and entries.
func (m *Mask) Equal(o *Mask) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.n != o.n {
		return false
	}
	for i := range m.n {
		a := m.data[i*m.stride : i*m.stride+m.n]
		b := o.data[i*o.stride : i*o.stride+o.n]
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// String renders one line per row, '1' for permitted and '.' for masked.
func (m *Mask) String() string {
	var sb strings.Builder
	sb.Grow(m.n * (m.n + 1))
	for i := range m.n {
		for _, ok := range m.data[i*m.stride : i*m.stride+m.n] {
			if ok {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
