// convert.go - Konvertierung roher Gewichte in ein einheitliches Datenformat
//
// Enthält:
// - ParseDType: bf16/fp16/fp32 mit Vorschlag bei Tippfehlern
// - ConvertFile: eine Safetensors- oder PyTorch-Datei umwandeln
// - Convert: Komponenten casten, Konfigurationen kopieren, Manifest schreiben

package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mneves75/z-image-go/imagegen/manifest"
	"github.com/mneves75/z-image-go/imagegen/safetensors"
	"github.com/mneves75/z-image-go/logutil"
)

// Converted are the weight files cast to the target dtype.
var Converted = []string{
	"text_encoder.safetensors",
	"vae.safetensors",
	"transformer.safetensors",
}

// Passthrough are copied unchanged.
var Passthrough = []string{
	"model_index.json",
	"tokenizer_config.json",
	"vocab.json",
	"merges.txt",
}

var dtypeNames = map[string]safetensors.DType{
	"bf16":     safetensors.BF16,
	"bfloat16": safetensors.BF16,
	"fp16":     safetensors.F16,
	"float16":  safetensors.F16,
	"fp32":     safetensors.F32,
	"float32":  safetensors.F32,
}

// ParseDType maps a --dtype value to a safetensors dtype.
func ParseDType(s string) (safetensors.DType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if d, ok := dtypeNames[key]; ok {
		return d, nil
	}

	best, bestDist := "", 3
	for name := range dtypeNames {
		if d := levenshtein.ComputeDistance(key, name); d < bestDist || (d == bestDist && name < best) {
			best, bestDist = name, d
		}
	}
	if best != "" {
		return "", fmt.Errorf("unsupported dtype %q, did you mean %q?", s, best)
	}
	return "", fmt.Errorf("unsupported dtype %q (bf16|fp16|fp32)", s)
}

// ConvertFile rewrites in as a safetensors file at out with every tensor in
// dtype. Inputs ending in .bin are read as PyTorch checkpoints.
func ConvertFile(in, out string, dtype safetensors.DType) error {
	var (
		w   *safetensors.Weights
		err error
	)
	if strings.HasSuffix(in, ".bin") {
		w, err = safetensors.LoadTorch(in)
	} else {
		w, err = safetensors.Load(in)
	}
	if err != nil {
		return fmt.Errorf("convert %s: %w", in, err)
	}
	if err := safetensors.Save(out, w.Map(), nil, dtype); err != nil {
		return fmt.Errorf("convert %s: %w", in, err)
	}
	return nil
}

// Result summarizes a finished conversion.
type Result struct {
	Manifest     *manifest.Manifest
	ManifestPath string
}

// Convert casts the weight components of src into dst, copies the
// configuration and tokenizer files, and writes dst/manifest.json.
// onFile, when set, is called after each converted file.
func Convert(ctx context.Context, src, dst string, dtype safetensors.DType, onFile func(name string)) (*Result, error) {
	log := logutil.FromContext(ctx).With("component", "weights")

	if err := manifest.RequireComponents(src); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, err
	}

	for _, name := range Converted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ConvertFile(filepath.Join(src, name), filepath.Join(dst, name), dtype); err != nil {
			return nil, err
		}
		log.Info("converted", "file", name, "dtype", dtype)
		if onFile != nil {
			onFile(name)
		}
	}

	for _, name := range Passthrough {
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return nil, err
		}
	}

	m, err := manifest.Build(ctx, dst)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dst, manifest.FileName)
	if err := manifest.Write(path, m); err != nil {
		return nil, err
	}
	return &Result{Manifest: m, ManifestPath: path}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
