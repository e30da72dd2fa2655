// config.go - Komponenten-Konfigurationen des Z-Image-Pakets
//
// Enthält:
// - TransformerConfig, VAEConfig, ModelIndex
// - LoadTransformerConfig, LoadVAEConfig, LoadModelIndex, LoadSchedulerConfig

package zimage

import (
	"encoding/json"
	"fmt"
	"os"
)

// TransformerConfig holds transformer/config.json. Only read, never run.
type TransformerConfig struct {
	Dim            int     `json:"dim"`
	NLayers        int     `json:"n_layers"`
	NHeads         int     `json:"n_heads"`
	NKVHeads       int     `json:"n_kv_heads"`
	InChannels     int     `json:"in_channels"`
	AllPatchSize   []int   `json:"all_patch_size"`
	RopeTheta      float32 `json:"rope_theta"`
	QKNorm         bool    `json:"qk_norm"`
	NRefinerLayers int     `json:"n_refiner_layers"`
}

// PatchSize returns the first entry of all_patch_size, or 0.
func (c TransformerConfig) PatchSize() int {
	if len(c.AllPatchSize) == 0 {
		return 0
	}
	return c.AllPatchSize[0]
}

// VAEConfig holds vae/config.json.
type VAEConfig struct {
	InChannels       int     `json:"in_channels"`
	OutChannels      int     `json:"out_channels"`
	LatentChannels   int     `json:"latent_channels"`
	BlockOutChannels []int   `json:"block_out_channels"`
	LayersPerBlock   int     `json:"layers_per_block"`
	ScalingFactor    float32 `json:"scaling_factor"`
	ShiftFactor      float32 `json:"shift_factor"`
	ForceUpcast      bool    `json:"force_upcast"`
}

// ModelIndex holds model_index.json.
type ModelIndex struct {
	ClassName        string `json:"_class_name"`
	DiffusersVersion string `json:"_diffusers_version"`
}

func LoadTransformerConfig(path string) (*TransformerConfig, error) {
	return loadJSON[TransformerConfig](path)
}

func LoadVAEConfig(path string) (*VAEConfig, error) {
	return loadJSON[VAEConfig](path)
}

func LoadModelIndex(path string) (*ModelIndex, error) {
	return loadJSON[ModelIndex](path)
}

// LoadSchedulerConfig reads scheduler_config.json and fills unset fields
// with the defaults.
func LoadSchedulerConfig(path string) (*SchedulerConfig, error) {
	cfg, err := loadJSON[SchedulerConfig](path)
	if err != nil {
		return nil, err
	}
	def := DefaultSchedulerConfig()
	if cfg.NumTrainTimesteps <= 0 {
		cfg.NumTrainTimesteps = def.NumTrainTimesteps
	}
	if cfg.Shift == 0 {
		cfg.Shift = def.Shift
	}
	return cfg, nil
}

func loadJSON[T any](path string) (*T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}
