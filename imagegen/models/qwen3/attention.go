// Modul: attention.go
// Beschreibung: Grouped-Query-Attention für den Qwen3 Text-Encoder.
// Enthält: Attention-Struct, Forward, repeatKV, causalMask.

package qwen3

import (
	"fmt"
	"math"

	"github.com/mneves75/z-image-go/imagegen/nn"
	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// Attention implements Qwen3 attention with per-head QK norms.
type Attention struct {
	QProj nn.LinearLayer `weight:"q_proj"`
	KProj nn.LinearLayer `weight:"k_proj"`
	VProj nn.LinearLayer `weight:"v_proj"`
	OProj nn.LinearLayer `weight:"o_proj"`
	QNorm *nn.RMSNorm    `weight:"q_norm"`
	KNorm *nn.RMSNorm    `weight:"k_norm"`
}

// Forward maps x [B, L, hidden] to [B, L, hidden] and also returns the
// post-softmax attention weights [B, H, L, L].
func (a *Attention) Forward(x *tensor.Array, cfg *Config, rope *Rotary) (out, probs *tensor.Array) {
	B, L := x.Dim(0), x.Dim(1)
	H, KV, D := cfg.NumAttentionHeads, cfg.NumKeyValueHeads, cfg.HeadDim

	q := splitHeads(a.QProj.Forward(x), B, L, H, D)
	k := splitHeads(a.KProj.Forward(x), B, L, KV, D)
	v := splitHeads(a.VProj.Forward(x), B, L, KV, D)

	q = rope.Apply(a.QNorm.Forward(q, cfg.RMSNormEps))
	k = rope.Apply(a.KNorm.Forward(k, cfg.RMSNormEps))

	k = repeatKV(k, H/KV)
	v = repeatKV(v, H/KV)

	scale := float32(1 / math.Sqrt(float64(D)))
	scores := tensor.MulScalar(tensor.MatmulT(q, k), scale)
	scores = tensor.Add(scores, causalMask(L))
	probs = tensor.Softmax(scores, -1)

	ctx := tensor.Matmul(probs, v)
	ctx = tensor.Reshape(tensor.Transpose(ctx, 0, 2, 1, 3), B, L, H*D)
	return a.OProj.Forward(ctx), probs
}

// splitHeads reshapes [B, L, H*D] to [B, H, L, D].
func splitHeads(x *tensor.Array, B, L, H, D int) *tensor.Array {
	if x.Dim(-1) != H*D {
		panic(fmt.Sprintf("qwen3: projection width %d does not match %d heads of %d", x.Dim(-1), H, D))
	}
	return tensor.Transpose(tensor.Reshape(x, B, L, H, D), 0, 2, 1, 3)
}

// repeatKV repeats each KV head n times contiguously: [B, KV, L, D] becomes
// [B, KV*n, L, D] with query head h reading KV head h/n.
func repeatKV(x *tensor.Array, n int) *tensor.Array {
	if n == 1 {
		return x
	}
	s := x.Shape()
	x = tensor.Tile(tensor.ExpandDims(x, 2), []int{1, 1, n, 1, 1})
	return tensor.Reshape(x, s[0], s[1]*n, s[2], s[3])
}

// causalMask is 0 on and below the diagonal and -Inf above it.
func causalMask(L int) *tensor.Array {
	m := tensor.Zeros(L, L)
	data := m.Data()
	ninf := float32(math.Inf(-1))
	for i := range L {
		for j := i + 1; j < L; j++ {
			data[i*L+j] = ninf
		}
	}
	return m
}
