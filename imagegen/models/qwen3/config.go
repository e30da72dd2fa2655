// Modul: config.go
// Beschreibung: Konfiguration des Qwen3 Text-Encoders.
// Enthält: Config-Struct, LoadConfig, Validate.

package qwen3

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultRopeTheta applies when config.json has no rope_theta.
const DefaultRopeTheta = 1_000_000

// ErrInvalidConfig marks a config the encoder cannot be built from.
var ErrInvalidConfig = errors.New("invalid text encoder config")

// Config holds the text_encoder/config.json fields the encoder uses.
type Config struct {
	HiddenSize        int     `json:"hidden_size"`
	NumHiddenLayers   int     `json:"num_hidden_layers"`
	NumAttentionHeads int     `json:"num_attention_heads"`
	NumKeyValueHeads  int     `json:"num_key_value_heads"`
	IntermediateSize  int     `json:"intermediate_size"`
	RMSNormEps        float32 `json:"rms_norm_eps"`
	HeadDim           int     `json:"head_dim"`
	RopeTheta         float32 `json:"rope_theta,omitempty"`
	VocabSize         int     `json:"vocab_size,omitempty"`
}

// LoadConfig reads path and validates the result.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the sizes and the grouped-query head ratio.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]int{
		"hidden_size":         c.HiddenSize,
		"num_hidden_layers":   c.NumHiddenLayers,
		"num_attention_heads": c.NumAttentionHeads,
		"num_key_value_heads": c.NumKeyValueHeads,
		"intermediate_size":   c.IntermediateSize,
		"head_dim":            c.HeadDim,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v))
		}
	}
	if c.RMSNormEps < 0 {
		errs = append(errs, fmt.Errorf("%w: rms_norm_eps is negative", ErrInvalidConfig))
	}
	if c.NumKeyValueHeads > 0 && c.NumAttentionHeads%c.NumKeyValueHeads != 0 {
		errs = append(errs, fmt.Errorf("%w: num_attention_heads %d is not a multiple of num_key_value_heads %d",
			ErrInvalidConfig, c.NumAttentionHeads, c.NumKeyValueHeads))
	}
	return errors.Join(errs...)
}

func (c *Config) ropeTheta() float32 {
	if c.RopeTheta > 0 {
		return c.RopeTheta
	}
	return DefaultRopeTheta
}
