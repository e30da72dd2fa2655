// sharded.go - Laden von Gewichtsverzeichnissen
//
// Enthält:
// - LoadSharded: model.safetensors.index.json mit weight_map
// - LoadDir: Index, Einzeldatei oder pytorch_model.bin in dieser Reihenfolge

package safetensors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"
)

const (
	IndexFile  = "model.safetensors.index.json"
	SingleFile = "model.safetensors"
	TorchFile  = "pytorch_model.bin"
)

type shardIndex struct {
	WeightMap map[string]string `json:"weight_map"`
}

// LoadSharded loads every shard referenced by the weight_map of the index
// file in dir. Shards are read concurrently.
func LoadSharded(dir, index string) (*Weights, error) {
	b, err := os.ReadFile(filepath.Join(dir, index))
	if err != nil {
		return nil, err
	}
	var idx shardIndex
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, index, err)
	}
	if len(idx.WeightMap) == 0 {
		return nil, fmt.Errorf("%w: %s has no weight_map", ErrCorrupt, index)
	}

	var shards []string
	for _, shard := range idx.WeightMap {
		if !slices.Contains(shards, shard) {
			shards = append(shards, shard)
		}
	}
	slices.Sort(shards)

	w := NewWeights()
	var g errgroup.Group
	g.SetLimit(4)
	for _, shard := range shards {
		g.Go(func() error {
			sw, err := Load(filepath.Join(dir, shard))
			if err != nil {
				return err
			}
			w.Merge(sw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for name, shard := range idx.WeightMap {
		if !w.HasTensor(name) {
			return nil, fmt.Errorf("%w: %s listed in %s but missing from %s", ErrCorrupt, name, index, shard)
		}
	}
	return w, nil
}

// LoadDir loads the weights stored in dir, trying the shard index, a single
// safetensors file and a PyTorch checkpoint in that order.
func LoadDir(dir string) (*Weights, error) {
	switch {
	case exists(filepath.Join(dir, IndexFile)):
		return LoadSharded(dir, IndexFile)
	case exists(filepath.Join(dir, SingleFile)):
		return Load(filepath.Join(dir, SingleFile))
	case exists(filepath.Join(dir, TorchFile)):
		return LoadTorch(filepath.Join(dir, TorchFile))
	}
	return nil, fmt.Errorf("no %s, %s or %s in %s: %w", IndexFile, SingleFile, TorchFile, dir, fs.ErrNotExist)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
