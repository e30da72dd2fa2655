// weights.go - Gewichts-Container
//
// Enthält:
// - WeightSource: Schnittstelle der Lader (GetTensor, HasTensor, ListTensors)
// - Weights: Map von Parameterpfad auf Tensor

package safetensors

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/mneves75/z-image-go/imagegen/tensor"
)

// WeightSource provides named tensors to model loaders.
type WeightSource interface {
	GetTensor(name string) (*tensor.Array, error)
	HasTensor(name string) bool
	ListTensors() []string
}

// Weights maps dotted parameter paths to tensors. It is safe for
// concurrent use; models only read from it after loading.
type Weights struct {
	mu       sync.RWMutex
	tensors  map[string]*tensor.Array
	metadata map[string]string
}

func NewWeights() *Weights {
	return &Weights{tensors: make(map[string]*tensor.Array)}
}

// FromMap wraps an existing map. The map must not be modified afterwards.
func FromMap(m map[string]*tensor.Array) *Weights {
	return &Weights{tensors: m}
}

func (w *Weights) Set(name string, t *tensor.Array) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tensors[name] = t
}

// Merge copies every tensor of o into w.
func (w *Weights) Merge(o *Weights) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	w.mu.Lock()
	defer w.mu.Unlock()
	maps.Copy(w.tensors, o.tensors)
}

func (w *Weights) GetTensor(name string) (*tensor.Array, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

func (w *Weights) HasTensor(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.tensors[name]
	return ok
}

// ListTensors returns all names in sorted order.
func (w *Weights) ListTensors() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Sorted(maps.Keys(w.tensors))
}

// HasPrefix reports whether any tensor name starts with prefix + ".".
func (w *Weights) HasPrefix(prefix string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for name := range w.tensors {
		if strings.HasPrefix(name, prefix+".") {
			return true
		}
	}
	return false
}

func (w *Weights) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.tensors)
}

// Metadata returns the safetensors __metadata__ of the source file, if any.
func (w *Weights) Metadata() map[string]string { return w.metadata }

// Map returns a shallow copy of the tensor map.
func (w *Weights) Map() map[string]*tensor.Array {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.tensors)
}
