// Modul: block.go
// Beschreibung: Transformer-Block für den Qwen3 Text-Encoder.
// Enthält: Block-Struct und Forward-Methode.

package qwen3

import (
	"github.com/mneves75/z-image-go/imagegen/nn"
	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// Block represents a single Qwen3 transformer block
type Block struct {
	Attention         *Attention  `weight:"self_attn"`
	MLP               *MLP        `weight:"mlp"`
	InputLayerNorm    *nn.RMSNorm `weight:"input_layernorm"`
	PostAttnLayerNorm *nn.RMSNorm `weight:"post_attention_layernorm"`
}

// Forward applies the pre-norm residual block and returns the new hidden
// state together with the block's attention weights.
func (b *Block) Forward(x *tensor.Array, cfg *Config, rope *Rotary) (*tensor.Array, *tensor.Array) {
	h := b.InputLayerNorm.Forward(x, cfg.RMSNormEps)
	attnOut, probs := b.Attention.Forward(h, cfg, rope)
	x = tensor.Add(x, attnOut)

	h = b.PostAttnLayerNorm.Forward(x, cfg.RMSNormEps)
	x = tensor.Add(x, b.MLP.Forward(h))
	return x, probs
}
