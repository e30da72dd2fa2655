// paths.go - Dateinamen und Ausgabepfade
//
// Enthält:
// - OutputFilename: base-yyyyMMdd-HHmmss[-n].png in UTC
// - ResolveOutput: Datei- oder Verzeichnisziel mit Index-Suffix

package imagegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mneves75/z-image-go/envconfig"
)

// DefaultOutputBase prefixes generated file names.
const DefaultOutputBase = "z-image"

// DefaultOutdir is used when neither --output nor --outdir is given.
const DefaultOutdir = "output"

// OutputFilename returns base-yyyyMMdd-HHmmss.png; indexes above zero get a
// -(index+1) suffix.
func OutputFilename(index int, ts time.Time, base string) string {
	if base == "" {
		base = DefaultOutputBase
	}
	suffix := ""
	if index > 0 {
		suffix = fmt.Sprintf("-%d", index+1)
	}
	return fmt.Sprintf("%s-%s%s.png", base, ts.UTC().Format("20060102-150405"), suffix)
}

// ResolveOutput picks the path for image index.
//
// An existing directory, or an output ending in a separator, receives a
// generated file name. Any other output is a file path whose parent is
// created; later images get a -(index+1) suffix before the extension.
// Without output, files go to outdir (DefaultOutdir when empty).
func ResolveOutput(output, outdir string, index int, ts time.Time) (string, error) {
	if output != "" {
		expanded := envconfig.ExpandHome(output)
		if fi, err := os.Stat(expanded); (err == nil && fi.IsDir()) || strings.HasSuffix(expanded, string(filepath.Separator)) || strings.HasSuffix(expanded, "/") {
			if err := os.MkdirAll(expanded, 0o755); err != nil {
				return "", err
			}
			return filepath.Join(expanded, OutputFilename(index, ts, "")), nil
		}

		dir := filepath.Dir(expanded)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		if index == 0 {
			return expanded, nil
		}
		ext := filepath.Ext(expanded)
		base := strings.TrimSuffix(filepath.Base(expanded), ext)
		if ext == "" {
			ext = ".png"
		}
		return filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, index+1, ext)), nil
	}

	if outdir == "" {
		outdir = DefaultOutdir
	}
	dir := envconfig.ExpandHome(outdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, OutputFilename(index, ts, "")), nil
}
