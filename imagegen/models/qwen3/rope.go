// Modul: rope.go
// Beschreibung: Rotary Position Embedding für den Qwen3 Text-Encoder.
// Enthält: Rotary-Struct, Apply, rotateHalf.

package qwen3

import (
	"math"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// Rotary applies rotate-half RoPE over the last axis of [B, H, T, D].
type Rotary struct {
	invFreq []float32
	headDim int
}

func newRotary(theta float32, headDim int) *Rotary {
	inv := make([]float32, headDim/2)
	for i := range inv {
		exp := 2 * float32(i) / float32(headDim)
		inv[i] = float32(math.Pow(float64(theta), -float64(exp)))
	}
	return &Rotary{invFreq: inv, headDim: headDim}
}

// tables returns cos and sin of shape [T, D]; the angles of the first half
// are repeated in the second.
func (r *Rotary) tables(seqLen int) (cos, sin *tensor.Array) {
	half := len(r.invFreq)
	c := make([]float32, seqLen*r.headDim)
	s := make([]float32, seqLen*r.headDim)
	for t := range seqLen {
		for i, f := range r.invFreq {
			angle := float32(t) * f
			cv, sv := float32(math.Cos(float64(angle))), float32(math.Sin(float64(angle)))
			row := t * r.headDim
			c[row+i], c[row+half+i] = cv, cv
			s[row+i], s[row+half+i] = sv, sv
		}
	}
	return tensor.New(c, seqLen, r.headDim), tensor.New(s, seqLen, r.headDim)
}

// Apply returns x*cos + rotateHalf(x)*sin.
func (r *Rotary) Apply(x *tensor.Array) *tensor.Array {
	cos, sin := r.tables(x.Dim(-2))
	return tensor.Add(tensor.Mul(x, cos), tensor.Mul(rotateHalf(x), sin))
}

// rotateHalf maps [x1, x2] to [-x2, x1] along the last axis.
func rotateHalf(x *tensor.Array) *tensor.Array {
	shape := x.Shape()
	n := len(shape)
	half := shape[n-1] / 2

	start := make([]int, n)
	mid := append(shape[:n-1:n-1], half)
	x1 := tensor.Slice(x, start, mid)

	start2 := make([]int, n)
	start2[n-1] = half
	x2 := tensor.Slice(x, start2, shape)

	return tensor.Concatenate([]*tensor.Array{tensor.Neg(x2), x1}, -1)
}
