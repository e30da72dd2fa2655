// nn.go - Grundlegende Layer für die Encoder-Modelle
//
// Enthält:
// - LinearLayer: Schnittstelle für Projektionen
// - Linear: y = x @ Wᵀ + b
// - RMSNorm: Root-Mean-Square-Normalisierung über die letzte Achse
// - Embedding: Zeilen-Lookup für Token-IDs
// - SiLU

package nn

import (
	"fmt"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// LinearLayer is implemented by projections that map [..., in] to [..., out].
type LinearLayer interface {
	Forward(x *tensor.Array) *tensor.Array
	OutputDim() int
}

// Linear is a dense projection with weight [out, in] and optional bias [out].
type Linear struct {
	Weight *tensor.Array `weight:"weight"`
	Bias   *tensor.Array `weight:"bias,optional"`
}

// NewLinear returns a Linear layer. bias may be nil.
func NewLinear(weight, bias *tensor.Array) *Linear {
	if weight.NDim() != 2 {
		panic(fmt.Sprintf("nn: linear weight must be 2-D, got %v", weight.Shape()))
	}
	if bias != nil && (bias.NDim() != 1 || bias.Dim(0) != weight.Dim(0)) {
		panic(fmt.Sprintf("nn: linear bias %v does not match weight %v", bias.Shape(), weight.Shape()))
	}
	return &Linear{Weight: weight, Bias: bias}
}

// Forward computes x @ Weightᵀ (+ Bias).
func (l *Linear) Forward(x *tensor.Array) *tensor.Array {
	if x.Dim(-1) != l.Weight.Dim(1) {
		panic(fmt.Sprintf("nn: linear input %v does not match weight %v", x.Shape(), l.Weight.Shape()))
	}
	y := tensor.MatmulT(x, l.Weight)
	if l.Bias != nil {
		y = tensor.Add(y, l.Bias)
	}
	return y
}

// OutputDim returns the number of output features.
func (l *Linear) OutputDim() int { return l.Weight.Dim(0) }

// RMSNorm scales each row by the inverse of its root mean square.
type RMSNorm struct {
	Weight *tensor.Array `weight:"weight"`
	Eps    float32
}

// NewRMSNorm returns an RMSNorm whose Apply uses eps.
func NewRMSNorm(weight *tensor.Array, eps float32) *RMSNorm {
	return &RMSNorm{Weight: weight, Eps: eps}
}

// Forward computes x / sqrt(mean(x², -1) + eps) * Weight.
func (n *RMSNorm) Forward(x *tensor.Array, eps float32) *tensor.Array {
	return tensor.RMSNorm(x, n.Weight, eps)
}

// Apply is Forward with the layer's own epsilon.
func (n *RMSNorm) Apply(x *tensor.Array) *tensor.Array {
	return n.Forward(x, n.Eps)
}

// Embedding maps token ids to rows of a [vocab, dim] table.
type Embedding struct {
	Weight *tensor.Array `weight:"weight"`
}

// Forward returns the [len(ids), dim] rows for ids. Out-of-range ids panic.
func (e *Embedding) Forward(ids []int32) *tensor.Array {
	vocab := e.Weight.Dim(0)
	for _, id := range ids {
		if id < 0 || int(id) >= vocab {
			panic(fmt.Sprintf("nn: token id %d outside vocabulary of %d", id, vocab))
		}
	}
	return tensor.Take(e.Weight, ids)
}

// SiLU is x * sigmoid(x).
func SiLU(x *tensor.Array) *tensor.Array { return tensor.SiLU(x) }
