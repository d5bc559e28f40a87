package tensor

import (
	"math"
)

// Dot computes the dot product of a and b.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// AddScaled computes dst += alpha * src.
func AddScaled(dst, src []float32, alpha float32) {
	for i := range dst {
		dst[i] += alpha * src[i]
	}
}

// Softmax applies the softmax function to x in place. Entries equal to
// negative infinity come out as exactly zero as long as one entry is finite.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}
