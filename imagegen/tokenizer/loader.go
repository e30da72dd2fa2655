// loader.go - Tokenizer aus HuggingFace-Dateien laden
//
// Enthält:
// - Load: vocab.json + merges.txt (+ added_tokens.json, tokenizer_config.json)
// - LoadFiles: explizite Pfade für Vokabular und Merges
// - readText: UTF-8 mit optionaler BOM lesen

package tokenizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	VocabFile       = "vocab.json"
	MergesFile      = "merges.txt"
	AddedTokensFile = "added_tokens.json"
	ConfigFile      = "tokenizer_config.json"
)

// Load reads a tokenizer from dir. If dir has no vocab.json but a tokenizer
// subdirectory does, that subdirectory is used. Added tokens from
// added_tokens.json and the added_tokens_decoder of tokenizer_config.json are
// registered as special tokens; opts run after them.
func Load(dir string, opts ...Option) (*Tokenizer, error) {
	dir = ResolveDir(dir)

	var special []Option
	added, err := readAddedTokens(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := readConfig(dir)
	if err != nil {
		return nil, err
	}
	for tok, id := range cfg.decoderTokens() {
		added[tok] = id
	}
	if len(added) > 0 {
		special = append(special, WithSpecialTokens(added))
	}
	special = append(special, withConfigTokens(cfg))

	return LoadFiles(filepath.Join(dir, VocabFile), filepath.Join(dir, MergesFile), append(special, opts...)...)
}

// ResolveDir returns dir, or dir/tokenizer when only the latter holds a
// vocab.json.
func ResolveDir(dir string) string {
	if _, err := os.Stat(filepath.Join(dir, VocabFile)); err == nil {
		return dir
	}
	sub := filepath.Join(dir, "tokenizer")
	if _, err := os.Stat(filepath.Join(sub, VocabFile)); err == nil {
		return sub
	}
	return dir
}

// LoadFiles reads the vocabulary and merge files at the given paths.
func LoadFiles(vocabPath, mergesPath string, opts ...Option) (*Tokenizer, error) {
	vb, err := readText(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	var vocab map[string]int32
	if err := json.Unmarshal(vb, &vocab); err != nil {
		return nil, fmt.Errorf("parse %s: %w", vocabPath, err)
	}

	mb, err := readText(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("read merges: %w", err)
	}
	t, err := New(vocab, bytes.NewReader(mb), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Dir(vocabPath), err)
	}
	return t, nil
}

// readText returns the file contents with a leading UTF-8 or UTF-16 BOM
// decoded away.
func readText(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
}

func readAddedTokens(dir string) (map[string]int32, error) {
	added := make(map[string]int32)
	b, err := readText(filepath.Join(dir, AddedTokensFile))
	if errors.Is(err, fs.ErrNotExist) {
		return added, nil
	} else if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &added); err != nil {
		return nil, fmt.Errorf("parse %s: %w", AddedTokensFile, err)
	}
	return added, nil
}

type tokenizerConfig struct {
	AddedTokensDecoder map[string]struct {
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens_decoder"`
	PadToken json.RawMessage `json:"pad_token"`
	EOSToken json.RawMessage `json:"eos_token"`
}

func readConfig(dir string) (*tokenizerConfig, error) {
	var cfg tokenizerConfig
	b, err := readText(filepath.Join(dir, ConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	} else if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	return &cfg, nil
}

func (c *tokenizerConfig) decoderTokens() map[string]int32 {
	out := make(map[string]int32, len(c.AddedTokensDecoder))
	for k, v := range c.AddedTokensDecoder {
		id, err := strconv.ParseInt(k, 10, 32)
		if err != nil || v.Content == "" {
			continue
		}
		out[v.Content] = int32(id)
	}
	return out
}

// tokenString accepts both "tok" and {"content": "tok"} forms.
func tokenString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Content string `json:"content"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Content
	}
	return ""
}

func withConfigTokens(cfg *tokenizerConfig) Option {
	return func(t *Tokenizer) error {
		if id, ok := t.TokenID(tokenString(cfg.PadToken)); ok {
			t.pad = id
		}
		if id, ok := t.TokenID(tokenString(cfg.EOSToken)); ok {
			t.eos = id
		}
		return nil
	}
}
