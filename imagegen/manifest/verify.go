// verify.go - Prüfung eines Gewichtsverzeichnisses gegen sein Manifest
//
// Enthält:
// - MissingError, IntegrityError mit Sentinels ErrMissing, ErrIntegrity
// - Verify: Existenz und SHA-256 jeder gelisteten Datei
// - RequireComponents: Pflichtdateien der Pipeline

package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mneves75/z-image-go/logutil"
)

var (
	// ErrMissing is matched by every *MissingError.
	ErrMissing = errors.New("required weights not found")
	// ErrIntegrity is matched by every *IntegrityError.
	ErrIntegrity = errors.New("integrity check failed")
)

// Components are the files a converted weights directory must hold.
var Components = []string{
	"text_encoder.safetensors",
	"vae.safetensors",
	"transformer.safetensors",
	"model_index.json",
	"tokenizer_config.json",
	"vocab.json",
	"merges.txt",
}

// MissingError reports a required file that does not exist.
type MissingError struct {
	Path string
	Err  error
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("required weights not found at %s", e.Path)
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

func (e *MissingError) Unwrap() error { return e.Err }

// IntegrityError reports a file whose digest differs from the manifest.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s", e.Path)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// Verify reads dir/name (FileName when empty) and checks every listed file.
// The first missing or mismatching file stops verification.
func Verify(ctx context.Context, dir, name string) (*Manifest, error) {
	if name == "" {
		name = FileName
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, &MissingError{Path: path, Err: err}
	}
	m, err := Read(path)
	if err != nil {
		return nil, err
	}

	log := logutil.FromContext(ctx).With("component", "weights")
	for _, f := range m.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := filepath.Join(dir, filepath.FromSlash(f.Path))
		if _, err := os.Stat(p); err != nil {
			return nil, &MissingError{Path: p, Err: err}
		}
		sum, err := HashFile(p)
		if err != nil {
			return nil, err
		}
		if sum != f.SHA256 {
			return nil, &IntegrityError{Path: p, Expected: f.SHA256, Actual: sum}
		}
		logutil.Trace(ctx, "verified", "path", f.Path)
	}
	log.Info("manifest verified", "dir", dir, "files", len(m.Files))
	return m, nil
}

// RequireComponents fails on the first of Components missing from dir.
func RequireComponents(dir string) error {
	for _, name := range Components {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			return &MissingError{Path: p, Err: err}
		}
	}
	return nil
}
