// Modul: mlp.go
// Beschreibung: SwiGLU-MLP für den Qwen3 Text-Encoder.
// Enthält: MLP-Struct und Forward-Methode.

package qwen3

import (
	"github.com/mneves75/z-image-go/imagegen/nn"
	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// MLP is the gated feed-forward block.
type MLP struct {
	GateProj nn.LinearLayer `weight:"gate_proj"`
	UpProj   nn.LinearLayer `weight:"up_proj"`
	DownProj nn.LinearLayer `weight:"down_proj"`
}

// Forward computes down(silu(gate(x)) * up(x)).
func (m *MLP) Forward(x *tensor.Array) *tensor.Array {
	gate := nn.SiLU(m.GateProj.Forward(x))
	return m.DownProj.Forward(tensor.Mul(gate, m.UpProj.Forward(x)))
}
