package tensor

import (
	"errors"
	"math"
	"testing"
)

func TestHeadViewSharesStorage(t *testing.T) {
	t.Parallel()

	x := New(2, 3, 4, 5)
	m := x.Head(1, 2)
	if m.R != 4 || m.C != 5 {
		t.Fatalf("head shape: got %dx%d, want 4x5", m.R, m.C)
	}
	m.Row(3)[4] = 7
	if got := x.At(1, 2, 3, 4); got != 7 {
		t.Fatalf("write through head view: got %v, want 7", got)
	}
	if got := x.Data[len(x.Data)-1]; got != 7 {
		t.Fatalf("last element: got %v, want 7", got)
	}
}

func TestFromDataRejectsWrongLength(t *testing.T) {
	t.Parallel()

	if _, err := FromData(1, 2, 3, 4, make([]float32, 23)); !errors.Is(err, errDataSizeMismatch) {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if _, err := FromData(1, -1, 3, 4, nil); !errors.Is(err, errNegativeDim) {
		t.Fatalf("expected negative dim error, got %v", err)
	}
	x, err := FromData(1, 1, 2, 2, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	if x.At(0, 0, 1, 0) != 3 {
		t.Fatalf("unexpected layout: %v", x.Data)
	}
}

func TestNestedRoundTrip(t *testing.T) {
	t.Parallel()

	in := [][][][]float32{
		{{{1, 2}, {3, 4}, {5, 6}}},
		{{{7, 8}, {9, 10}, {11, 12}}},
	}
	x, err := FromNested(in)
	if err != nil {
		t.Fatalf("FromNested: %v", err)
	}
	if x.Shape() != [4]int{2, 1, 3, 2} {
		t.Fatalf("shape: got %v", x.Shape())
	}
	if x.At(1, 0, 2, 1) != 12 {
		t.Fatalf("At(1,0,2,1): got %v", x.At(1, 0, 2, 1))
	}
	out := x.Nested()
	out[0][0][0][0] = 100
	if x.At(0, 0, 0, 0) != 1 {
		t.Fatalf("Nested must copy")
	}
	if out[1][0][1][1] != 10 {
		t.Fatalf("Nested value: got %v", out[1][0][1][1])
	}
}

func TestFromNestedRagged(t *testing.T) {
	t.Parallel()

	in := [][][][]float32{{{{1, 2}, {3}}}}
	if _, err := FromNested(in); !errors.Is(err, errRagged) {
		t.Fatalf("expected ragged error, got %v", err)
	}
}

func TestSoftmaxMaskedEntriesAreZero(t *testing.T) {
	t.Parallel()

	negInf := float32(math.Inf(-1))
	x := []float32{negInf, 1, 2, negInf}
	Softmax(x)
	if x[0] != 0 || x[3] != 0 {
		t.Fatalf("masked entries must be zero: %v", x)
	}
	sum := x[1] + x[2]
	if math.Abs(float64(sum-1)) > 1e-6 {
		t.Fatalf("probabilities sum to %v", sum)
	}
	if x[2] <= x[1] {
		t.Fatalf("larger score must get larger weight: %v", x)
	}
}

func TestFillRandDeterministic(t *testing.T) {
	t.Parallel()

	a := New(1, 2, 3, 4)
	b := New(1, 2, 3, 4)
	a.FillRand(9, 1)
	b.FillRand(9, 1)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("mismatch at %d", i)
		}
		if a.Data[i] < -0.5 || a.Data[i] >= 0.5 {
			t.Fatalf("value %v out of range", a.Data[i])
		}
	}
}

func TestDotAndAddScaled(t *testing.T) {
	t.Parallel()

	if got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Fatalf("Dot: got %v, want 32", got)
	}
	dst := []float32{1, 1}
	AddScaled(dst, []float32{2, 4}, 0.5)
	if dst[0] != 2 || dst[1] != 3 {
		t.Fatalf("AddScaled: got %v", dst)
	}
}
