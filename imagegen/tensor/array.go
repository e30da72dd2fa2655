// array.go - Dichte float32-Arrays für die CPU-Inferenz
//
// Enthält:
// - Array: zeilenweise gespeichertes n-dimensionales float32-Array
// - New, Zeros, Full, Arange: Konstruktoren
// - Shape-Hilfsfunktionen (numel, strides, broadcastShapes)

package tensor

import (
	"fmt"
	"slices"
	"strings"
)

// Array is a dense row-major float32 array. Operations never mutate their
// inputs; every op allocates a fresh result.
type Array struct {
	shape []int
	data  []float32
}

// New wraps data in an array of the given shape. The slice is not copied.
func New(data []float32, shape ...int) *Array {
	if n := numel(shape); n != len(data) {
		panic(fmt.Sprintf("tensor: %d values do not fit shape %v", len(data), shape))
	}
	return &Array{shape: slices.Clone(shape), data: data}
}

// Zeros returns a zero-filled array.
func Zeros(shape ...int) *Array {
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in shape %v", shape))
		}
	}
	return &Array{shape: slices.Clone(shape), data: make([]float32, numel(shape))}
}

// Full returns an array with every element set to v.
func Full(v float32, shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = v
	}
	return a
}

// Arange returns [0, 1, ..., n-1].
func Arange(n int) *Array {
	a := Zeros(n)
	for i := range a.data {
		a.data[i] = float32(i)
	}
	return a
}

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() []int { return slices.Clone(a.shape) }

// NDim returns the number of dimensions.
func (a *Array) NDim() int { return len(a.shape) }

// Size returns the number of elements.
func (a *Array) Size() int { return len(a.data) }

// Dim returns the size of dimension i. Negative i counts from the end.
func (a *Array) Dim(i int) int { return a.shape[a.axis(i)] }

// Data returns the backing slice. Callers must treat it as read-only.
func (a *Array) Data() []float32 { return a.data }

// Floats returns a copy of the elements.
func (a *Array) Floats() []float32 { return slices.Clone(a.data) }

// At returns the element at the given multi-index.
func (a *Array) At(idx ...int) float32 {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("tensor: index %v for shape %v", idx, a.shape))
	}
	off := 0
	for i, s := range strides(a.shape) {
		if idx[i] < 0 || idx[i] >= a.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, a.shape))
		}
		off += idx[i] * s
	}
	return a.data[off]
}

// Item returns the single element of a size-1 array.
func (a *Array) Item() float32 {
	if len(a.data) != 1 {
		panic(fmt.Sprintf("tensor: Item on array of shape %v", a.shape))
	}
	return a.data[0]
}

func (a *Array) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Array%v", a.shape)
	if len(a.data) <= 8 {
		fmt.Fprintf(&sb, "%v", a.data)
	}
	return sb.String()
}

// axis normalizes a possibly negative axis.
func (a *Array) axis(i int) int {
	n := len(a.shape)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		panic(fmt.Sprintf("tensor: axis %d out of range for %d dims", i, n))
	}
	return i
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// broadcastShapes returns the numpy-style broadcast of a and b.
func broadcastShapes(a, b []int) []int {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := range n {
		da, db := 1, 1
		if j := len(a) - n + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - n + i; j >= 0 {
			db = b[j]
		}
		switch {
		case da == db, db == 1:
			out[i] = da
		case da == 1:
			out[i] = db
		default:
			panic(fmt.Sprintf("tensor: shapes %v and %v do not broadcast", a, b))
		}
	}
	return out
}

// broadcastOffset maps a linear index in the broadcast shape out onto the
// linear offset of an operand with shape src.
func broadcastOffset(i int, out, src []int) int {
	off, stride := 0, 1
	for d := len(out) - 1; d >= 0; d-- {
		coord := i % out[d]
		i /= out[d]
		j := len(src) - len(out) + d
		if j < 0 {
			continue
		}
		if src[j] != 1 {
			off += coord * stride
		}
		stride *= src[j]
	}
	return off
}
