// torch.go - PyTorch-Checkpoints (.bin) über gopickle

package safetensors

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// LoadTorch reads a pickled PyTorch state dict. Float, half and bfloat16
// storages are supported; tensors must be contiguous.
func LoadTorch(path string) (*Weights, error) {
	pt, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	dict, ok := pt.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %T, not a state dict", ErrCorrupt, path, pt)
	}

	w := NewWeights()
	for _, k := range dict.Keys() {
		name, ok := k.(string)
		if !ok {
			continue
		}
		t, ok := dict.MustGet(k).(*pytorch.Tensor)
		if !ok {
			continue
		}

		var data []float32
		switch s := t.Source.(type) {
		case *pytorch.FloatStorage:
			data = s.Data
		case *pytorch.HalfStorage:
			data = s.Data
		case *pytorch.BFloat16Storage:
			data = s.Data
		default:
			return nil, fmt.Errorf("%w: %s: unsupported storage %T", ErrCorrupt, name, t.Source)
		}

		shape := append([]int(nil), t.Size...)
		n, stride := 1, 1
		for i := len(shape) - 1; i >= 0; i-- {
			if i < len(t.Stride) && shape[i] > 1 && t.Stride[i] != stride {
				return nil, fmt.Errorf("%w: %s: non-contiguous tensor", ErrCorrupt, name)
			}
			stride *= shape[i]
			n *= shape[i]
		}
		if t.StorageOffset < 0 || t.StorageOffset+n > len(data) {
			return nil, fmt.Errorf("%w: %s: storage too small for shape %v", ErrCorrupt, name, shape)
		}
		vals := make([]float32, n)
		copy(vals, data[t.StorageOffset:t.StorageOffset+n])
		w.Set(name, tensor.New(vals, shape...))
	}
	return w, nil
}
