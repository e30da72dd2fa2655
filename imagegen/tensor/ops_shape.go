// ops_shape.go - Form-Operationen
//
// Enthält:
// - Reshape, ExpandDims: neue Sicht auf dieselben Werte
// - Transpose: beliebige Achsenpermutation
// - Slice, Concatenate, Tile, Take

package tensor

import (
	"fmt"
	"slices"
)

// Reshape returns a with a new shape. One dimension may be -1.
func Reshape(a *Array, shape ...int) *Array {
	shape = slices.Clone(shape)
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("tensor: reshape %v has more than one -1", shape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || len(a.data)%known != 0 {
			panic(fmt.Sprintf("tensor: cannot reshape %v into %v", a.shape, shape))
		}
		shape[infer] = len(a.data) / known
	}
	if numel(shape) != len(a.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v into %v", a.shape, shape))
	}
	return &Array{shape: shape, data: a.data}
}

// ExpandDims inserts a dimension of size 1 at axis.
func ExpandDims(a *Array, axis int) *Array {
	n := len(a.shape) + 1
	if axis < 0 {
		axis += n
	}
	if axis < 0 || axis >= n {
		panic(fmt.Sprintf("tensor: expand axis %d out of range for %v", axis, a.shape))
	}
	shape := slices.Insert(slices.Clone(a.shape), axis, 1)
	return &Array{shape: shape, data: a.data}
}

// Transpose permutes the axes of a. Without axes the order is reversed.
func Transpose(a *Array, axes ...int) *Array {
	n := len(a.shape)
	if len(axes) == 0 {
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	if len(axes) != n {
		panic(fmt.Sprintf("tensor: transpose axes %v for shape %v", axes, a.shape))
	}

	inStrides := strides(a.shape)
	outShape := make([]int, n)
	permStrides := make([]int, n)
	seen := make([]bool, n)
	for i, ax := range axes {
		ax = a.axis(ax)
		if seen[ax] {
			panic(fmt.Sprintf("tensor: repeated axis in transpose %v", axes))
		}
		seen[ax] = true
		outShape[i] = a.shape[ax]
		permStrides[i] = inStrides[ax]
	}

	out := Zeros(outShape...)
	if len(out.data) == 0 {
		return out
	}

	// Walk the output in order, keeping the matching input offset current.
	idx := make([]int, n)
	off := 0
	inner := n - 1
	for i := range out.data {
		out.data[i] = a.data[off]
		for d := inner; d >= 0; d-- {
			idx[d]++
			off += permStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			off -= permStrides[d] * outShape[d]
			idx[d] = 0
		}
	}
	return out
}

// Slice returns a[start[0]:stop[0], start[1]:stop[1], ...].
func Slice(a *Array, start, stop []int) *Array {
	n := len(a.shape)
	if len(start) != n || len(stop) != n {
		panic(fmt.Sprintf("tensor: slice bounds %v:%v for shape %v", start, stop, a.shape))
	}
	outShape := make([]int, n)
	for i := range n {
		if start[i] < 0 || stop[i] > a.shape[i] || start[i] > stop[i] {
			panic(fmt.Sprintf("tensor: slice bounds %v:%v for shape %v", start, stop, a.shape))
		}
		outShape[i] = stop[i] - start[i]
	}

	out := Zeros(outShape...)
	if len(out.data) == 0 {
		return out
	}

	inStrides := strides(a.shape)
	rowLen := outShape[n-1]
	rows := len(out.data) / rowLen
	idx := make([]int, n-1)
	for r := range rows {
		off := start[n-1]
		for d := range n - 1 {
			off += (start[d] + idx[d]) * inStrides[d]
		}
		copy(out.data[r*rowLen:(r+1)*rowLen], a.data[off:off+rowLen])
		for d := n - 2; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// Concatenate joins arrays along axis. All other dimensions must agree.
func Concatenate(arrays []*Array, axis int) *Array {
	if len(arrays) == 0 {
		panic("tensor: concatenate of zero arrays")
	}
	first := arrays[0]
	axis = first.axis(axis)

	outShape := slices.Clone(first.shape)
	outShape[axis] = 0
	for _, a := range arrays {
		if len(a.shape) != len(first.shape) {
			panic(fmt.Sprintf("tensor: concatenate %v with %v", first.shape, a.shape))
		}
		for d := range a.shape {
			if d != axis && a.shape[d] != first.shape[d] {
				panic(fmt.Sprintf("tensor: concatenate %v with %v on axis %d", first.shape, a.shape, axis))
			}
		}
		outShape[axis] += a.shape[axis]
	}

	outer := numel(first.shape[:axis])
	inner := numel(first.shape[axis+1:])
	out := Zeros(outShape...)
	pos := 0
	for o := range outer {
		for _, a := range arrays {
			chunk := a.shape[axis] * inner
			copy(out.data[pos:pos+chunk], a.data[o*chunk:(o+1)*chunk])
			pos += chunk
		}
	}
	return out
}

// Tile repeats a reps[i] times along each axis i.
func Tile(a *Array, reps []int) *Array {
	if len(reps) != len(a.shape) {
		panic(fmt.Sprintf("tensor: tile reps %v for shape %v", reps, a.shape))
	}
	outShape := make([]int, len(a.shape))
	for i := range reps {
		outShape[i] = a.shape[i] * reps[i]
	}

	out := Zeros(outShape...)
	inStrides := strides(a.shape)
	for i := range out.data {
		rem, off := i, 0
		for d := len(outShape) - 1; d >= 0; d-- {
			coord := rem % outShape[d]
			rem /= outShape[d]
			off += (coord % a.shape[d]) * inStrides[d]
		}
		out.data[i] = a.data[off]
	}
	return out
}

// Take gathers rows of a along axis 0. The result has shape
// [len(indices), a.shape[1:]...].
func Take(a *Array, indices []int32) *Array {
	if len(a.shape) == 0 {
		panic("tensor: take on a scalar")
	}
	rowLen := numel(a.shape[1:])
	outShape := append([]int{len(indices)}, a.shape[1:]...)
	out := Zeros(outShape...)
	for i, id := range indices {
		if id < 0 || int(id) >= a.shape[0] {
			panic(fmt.Sprintf("tensor: index %d out of range for %d rows", id, a.shape[0]))
		}
		copy(out.data[i*rowLen:(i+1)*rowLen], a.data[int(id)*rowLen:(int(id)+1)*rowLen])
	}
	return out
}
