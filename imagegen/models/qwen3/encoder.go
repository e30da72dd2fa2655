// Modul: encoder.go
// Beschreibung: Qwen3 Text-Encoder für die Prompt-Konditionierung.
// Enthält: TextEncoder-Struct, New, Load, Forward, ForwardLayer, ForwardWithAttention.

package qwen3

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mneves75/z-image-go/imagegen/nn"
	"github.com/mneves75/z-image-go/imagegen/safetensors"
	"github.com/mneves75/z-image-go/imagegen/tensor"
	"github.com/mneves75/z-image-go/logutil"
)

// TextEncoder is the Qwen3 text encoder
type TextEncoder struct {
	EmbedTokens *nn.Embedding `weight:"model.embed_tokens"`
	Layers      []*Block      `weight:"model.layers"`
	FinalNorm   *nn.RMSNorm   `weight:"model.norm"`
	*Config

	rope *Rotary
}

// New builds an encoder from weights. Every missing parameter is reported in
// the returned error.
func New(weights safetensors.WeightSource, cfg *Config) (*TextEncoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	te := &TextEncoder{
		Layers: make([]*Block, cfg.NumHiddenLayers),
		Config: cfg,
		rope:   newRotary(cfg.ropeTheta(), cfg.HeadDim),
	}
	if err := safetensors.LoadModule(te, weights, ""); err != nil {
		return nil, fmt.Errorf("load text encoder: %w", err)
	}
	for _, n := range te.norms() {
		n.Eps = cfg.RMSNormEps
	}
	return te, nil
}

// Load reads config.json and the weights from a text_encoder directory.
func Load(ctx context.Context, dir string) (*TextEncoder, error) {
	log := logutil.FromContext(ctx).With("component", "weights")
	start := time.Now()

	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}
	weights, err := safetensors.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	te, err := New(weights, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("text encoder loaded", "dir", dir, "layers", cfg.NumHiddenLayers,
		"tensors", weights.Len(), "elapsed", time.Since(start))
	return te, nil
}

func (te *TextEncoder) norms() []*nn.RMSNorm {
	out := []*nn.RMSNorm{te.FinalNorm}
	for _, b := range te.Layers {
		out = append(out, b.InputLayerNorm, b.PostAttnLayerNorm, b.Attention.QNorm, b.Attention.KNorm)
	}
	return out
}

// Forward returns the final-normed hidden states [1, len(ids), hidden].
func (te *TextEncoder) Forward(ids []int32) *tensor.Array {
	h, _ := te.run(ids, len(te.Layers)-1, false)
	return te.FinalNorm.Forward(h, te.RMSNormEps)
}

// ForwardLayer returns the hidden state after block layer (0-based,
// inclusive) without the final norm. It panics when layer is out of range.
func (te *TextEncoder) ForwardLayer(ids []int32, layer int) *tensor.Array {
	if layer < 0 || layer >= len(te.Layers) {
		panic(fmt.Sprintf("qwen3: layer %d out of range for %d layers", layer, len(te.Layers)))
	}
	h, _ := te.run(ids, layer, false)
	return h
}

// ForwardWithAttention is Forward plus the attention weights of every block.
func (te *TextEncoder) ForwardWithAttention(ids []int32) (*tensor.Array, []*tensor.Array) {
	h, probs := te.run(ids, len(te.Layers)-1, true)
	return te.FinalNorm.Forward(h, te.RMSNormEps), probs
}

func (te *TextEncoder) run(ids []int32, last int, keep bool) (*tensor.Array, []*tensor.Array) {
	x := te.EmbedTokens.Forward(ids)
	x = tensor.Reshape(x, 1, len(ids), x.Dim(-1))
	if len(ids) == 0 {
		return x, nil
	}

	var probs []*tensor.Array
	for _, b := range te.Layers[:last+1] {
		var p *tensor.Array
		x, p = b.Forward(x, te.Config, te.rope)
		if keep {
			probs = append(probs, p)
		}
	}
	return x, probs
}
