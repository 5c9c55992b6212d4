// Package math32 provides float32 vector kernels shared by the engram
// layers. This is an internal package - it carries only the portable
// generic implementations.
package math32

import "math"

const rmsEps = 1e-5

// Dot calculates the dot product of two vectors.
// Both slices must have the same length.
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// AddInPlace adds b into a elementwise.
func AddInPlace(a, b []float32) {
	for i := range a {
		a[i] += b[i]
	}
}

// MatVec computes xout = W @ x where W is row-major (d, n) and x is (n,).
func MatVec(xout, w, x []float32) {
	n := len(x)
	for i := range xout {
		var sum float32
		row := w[i*n : i*n+n]
		for j, v := range x {
			sum += row[j] * v
		}

		xout[i] = sum
	}
}

// RMSNorm writes the root-mean-square normalization of x scaled by
// weight into o. All three slices must have the same length.
func RMSNorm(o, x, weight []float32) {
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	ss /= float32(len(x))
	ss += rmsEps
	inv := 1 / float32(math.Sqrt(float64(ss)))

	for i, v := range x {
		o[i] = weight[i] * (v * inv)
	}
}

// RMSNormPlain is RMSNorm without a learned gain.
func RMSNormPlain(o, x []float32) {
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	ss /= float32(len(x))
	ss += rmsEps
	inv := 1 / float32(math.Sqrt(float64(ss)))

	for i, v := range x {
		o[i] = v * inv
	}
}

// Sigmoid returns 1 / (1 + exp(-x)).
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(float64(-x))))
}

// SiLU applies x * sigmoid(x) to every element of a in place.
func SiLU(a []float32) {
	for i, v := range a {
		a[i] = v * Sigmoid(v)
	}
}

// SignedSqrt returns sign(x) * sqrt(max(|x|, eps)).
//
// Compresses gate-logit magnitude while preserving direction so large
// dot products do not saturate the sigmoid that follows.
func SignedSqrt(x, eps float32) float32 {
	mag := x
	if mag < 0 {
		mag = -mag
	}
	if mag < eps {
		mag = eps
	}

	s := float32(math.Sqrt(float64(mag)))
	if x < 0 {
		return -s
	}

	return s
}
