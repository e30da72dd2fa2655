// placeholder.go - Deterministische Platzhalterbilder
//
// Enthält:
// - Format: png, bmp, tiff
// - WritePlaceholder: SplitMix64-Verlauf aus Seed und Prompt-Hash
// - splitMix64

package imagegen

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat accepts png, bmp, tiff or tif. Empty means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("unsupported image format %q (png|bmp|tiff)", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == "" {
		return ".png"
	}
	return "." + string(f)
}

// WithExt replaces the extension of path with the format's.
func (f Format) WithExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + f.Ext()
}

// Placeholder renders the deterministic gradient for seed and prompt.
func Placeholder(width, height int, seed int64, prompt string) *image.NRGBA {
	h := fnv.New64a()
	io.WriteString(h, prompt)
	rng := newSplitMix64(uint64(seed) ^ h.Sum64())

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := rng.nextByte()
			img.SetNRGBA(x, y, color.NRGBA{
				R: v,
				G: uint8((int(v) + x) % 255),
				B: uint8((int(v) + y) % 255),
				A: 255,
			})
		}
	}
	return img
}

// WritePlaceholder encodes the placeholder for seed and prompt to w.
func WritePlaceholder(w io.Writer, format Format, width, height int, seed int64, prompt string) error {
	if width <= 0 || height <= 0 {
		return unavailable("cannot render %dx%d image", width, height)
	}
	img := Placeholder(width, height, seed, prompt)
	switch format {
	case FormatPNG, "":
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported image format %q", format)
}

// WritePlaceholderFile writes the placeholder to path.
func WritePlaceholderFile(path string, format Format, width, height int, seed int64, prompt string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePlaceholder(f, format, width, height, seed, prompt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type splitMix64 struct{ state uint64 }

const golden = 0x9E3779B97F4A7C15

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed + golden} }

func (s *splitMix64) next() uint64 {
	s.state += golden
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (s *splitMix64) nextByte() uint8 { return uint8(s.next() >> 56) }
