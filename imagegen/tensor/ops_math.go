// ops_math.go - Elementweise Arithmetik, Aktivierungen und Reduktionen
//
// Enthält:
// - Add, Sub, Mul, Div mit numpy-Broadcasting
// - Neg, Square, Sqrt, Rsqrt, Sin, Cos, Exp, Sigmoid, SiLU
// - AddScalar, MulScalar
// - Sum, Mean, MeanAxis, Softmax, RMSNorm

package tensor

import (
	"fmt"
	"math"
	"slices"
)

// Add returns a + b with broadcasting.
func Add(a, b *Array) *Array { return binary(a, b, func(x, y float32) float32 { return x + y }) }

// Sub returns a - b with broadcasting.
func Sub(a, b *Array) *Array { return binary(a, b, func(x, y float32) float32 { return x - y }) }

// Mul returns a * b with broadcasting.
func Mul(a, b *Array) *Array { return binary(a, b, func(x, y float32) float32 { return x * y }) }

// Div returns a / b with broadcasting.
func Div(a, b *Array) *Array { return binary(a, b, func(x, y float32) float32 { return x / y }) }

func binary(a, b *Array, f func(x, y float32) float32) *Array {
	switch {
	case slices.Equal(a.shape, b.shape):
		out := Zeros(a.shape...)
		for i := range out.data {
			out.data[i] = f(a.data[i], b.data[i])
		}
		return out
	case isSuffix(b.shape, a.shape):
		out := Zeros(a.shape...)
		n := len(b.data)
		for i := range out.data {
			out.data[i] = f(a.data[i], b.data[i%n])
		}
		return out
	case isSuffix(a.shape, b.shape):
		out := Zeros(b.shape...)
		n := len(a.data)
		for i := range out.data {
			out.data[i] = f(a.data[i%n], b.data[i])
		}
		return out
	}

	shape := broadcastShapes(a.shape, b.shape)
	out := Zeros(shape...)
	for i := range out.data {
		out.data[i] = f(a.data[broadcastOffset(i, shape, a.shape)], b.data[broadcastOffset(i, shape, b.shape)])
	}
	return out
}

// isSuffix reports whether small equals the trailing dimensions of big and
// is non-empty in elements.
func isSuffix(small, big []int) bool {
	if len(small) > len(big) || numel(small) == 0 {
		return false
	}
	return slices.Equal(small, big[len(big)-len(small):])
}

func unary(a *Array, f func(x float32) float32) *Array {
	out := Zeros(a.shape...)
	for i, v := range a.data {
		out.data[i] = f(v)
	}
	return out
}

// Neg returns -a.
func Neg(a *Array) *Array { return unary(a, func(x float32) float32 { return -x }) }

// Square returns a*a.
func Square(a *Array) *Array { return unary(a, func(x float32) float32 { return x * x }) }

// Sqrt returns the element-wise square root.
func Sqrt(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Sqrt(float64(x))) })
}

// Rsqrt returns 1/sqrt(a).
func Rsqrt(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(1 / math.Sqrt(float64(x))) })
}

// Exp returns e^a.
func Exp(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Exp(float64(x))) })
}

// Sin returns the element-wise sine.
func Sin(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Sin(float64(x))) })
}

// Cos returns the element-wise cosine.
func Cos(a *Array) *Array {
	return unary(a, func(x float32) float32 { return float32(math.Cos(float64(x))) })
}

// Sigmoid returns 1/(1+e^-a).
func Sigmoid(a *Array) *Array { return unary(a, sigmoid) }

// SiLU returns a*sigmoid(a).
func SiLU(a *Array) *Array { return unary(a, func(x float32) float32 { return x * sigmoid(x) }) }

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// AddScalar returns a + s.
func AddScalar(a *Array, s float32) *Array { return unary(a, func(x float32) float32 { return x + s }) }

// MulScalar returns a * s.
func MulScalar(a *Array, s float32) *Array { return unary(a, func(x float32) float32 { return x * s }) }

// Sum returns the sum of all elements, accumulated in float64.
func Sum(a *Array) float64 {
	var s float64
	for _, v := range a.data {
		s += float64(v)
	}
	return s
}

// Mean returns the mean of all elements.
func Mean(a *Array) float64 {
	if len(a.data) == 0 {
		return math.NaN()
	}
	return Sum(a) / float64(len(a.data))
}

// MeanAxis reduces the last axis by its mean. Only the last axis is
// supported.
func MeanAxis(a *Array, axis int, keepDims bool) *Array {
	if a.axis(axis) != len(a.shape)-1 {
		panic(fmt.Sprintf("tensor: mean over axis %d of %v; only the last axis is supported", axis, a.shape))
	}
	d := a.shape[len(a.shape)-1]
	rows := len(a.data) / max(d, 1)
	shape := slices.Clone(a.shape[:len(a.shape)-1])
	if keepDims {
		shape = append(shape, 1)
	}
	out := Zeros(shape...)
	for r := range rows {
		var s float64
		for _, v := range a.data[r*d : (r+1)*d] {
			s += float64(v)
		}
		out.data[r] = float32(s / float64(d))
	}
	return out
}

// Softmax normalizes the last axis. -Inf entries get zero weight.
func Softmax(a *Array, axis int) *Array {
	if a.axis(axis) != len(a.shape)-1 {
		panic(fmt.Sprintf("tensor: softmax over axis %d of %v; only the last axis is supported", axis, a.shape))
	}
	d := a.shape[len(a.shape)-1]
	out := Zeros(a.shape...)
	if d == 0 {
		return out
	}
	rows := len(a.data) / d
	parallelFor(rows, func(r int) {
		in := a.data[r*d : (r+1)*d]
		dst := out.data[r*d : (r+1)*d]
		m := float32(math.Inf(-1))
		for _, v := range in {
			m = max(m, v)
		}
		var s float64
		for i, v := range in {
			e := math.Exp(float64(v - m))
			dst[i] = float32(e)
			s += e
		}
		for i := range dst {
			dst[i] = float32(float64(dst[i]) / s)
		}
	})
	return out
}

// RMSNorm computes x / sqrt(mean(x², -1) + eps) * weight over the last axis.
// weight must have the size of the last axis.
func RMSNorm(x, weight *Array, eps float32) *Array {
	d := x.shape[len(x.shape)-1]
	if weight.Size() != d {
		panic(fmt.Sprintf("tensor: rms norm weight %v for input %v", weight.shape, x.shape))
	}
	out := Zeros(x.shape...)
	if d == 0 {
		return out
	}
	rows := len(x.data) / d
	parallelFor(rows, func(r int) {
		in := x.data[r*d : (r+1)*d]
		var ms float64
		for _, v := range in {
			ms += float64(v) * float64(v)
		}
		ms /= float64(d)
		inv := float32(1 / math.Sqrt(ms+float64(eps)))
		dst := out.data[r*d : (r+1)*d]
		for i, v := range in {
			dst[i] = v * inv * weight.data[i]
		}
	})
	return out
}
