// dimensions.go - Prüfung der Bildgrößen und Seitenverhältnis-Presets
//
// Enthält:
// - DimensionPolicy, DefaultDimensionPolicy, ValidateDimensions
// - AspectPreset, AspectPresets, PresetNamed, SuggestPreset

package imagegen

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DimensionPolicy bounds the width and height of a generated image.
type DimensionPolicy struct {
	Multiple int
	Min      int
	Max      int
}

// DefaultDimensionPolicy allows multiples of 64 between 256 and 2048.
var DefaultDimensionPolicy = DimensionPolicy{Multiple: 64, Min: 256, Max: 2048}

// Validate checks the minimum, then the maximum, then the multiple.
func (p DimensionPolicy) Validate(width, height int) error {
	switch {
	case width < p.Min || height < p.Min:
		return &DimensionError{width, height, fmt.Sprintf("below minimum %d", p.Min)}
	case width > p.Max || height > p.Max:
		return &DimensionError{width, height, fmt.Sprintf("above maximum %d", p.Max)}
	case width%p.Multiple != 0 || height%p.Multiple != 0:
		return &DimensionError{width, height, fmt.Sprintf("must be multiples of %d", p.Multiple)}
	}
	return nil
}

// ValidateDimensions applies DefaultDimensionPolicy.
func ValidateDimensions(width, height int) error {
	return DefaultDimensionPolicy.Validate(width, height)
}

// AspectPreset is a named width/height pair.
type AspectPreset struct {
	Name   string
	Width  int
	Height int
}

// AspectPresets are the presets accepted by --aspect.
var AspectPresets = []AspectPreset{
	{"1:1", 1024, 1024},
	{"16:9", 1280, 720},
	{"9:16", 720, 1280},
	{"4:3", 1088, 816},
	{"3:4", 816, 1088},
}

// PresetNamed returns the preset with the exact name.
func PresetNamed(name string) (AspectPreset, bool) {
	for _, p := range AspectPresets {
		if p.Name == name {
			return p, true
		}
	}
	return AspectPreset{}, false
}

// PresetNames returns the preset names joined by commas.
func PresetNames() string {
	names := make([]string, len(AspectPresets))
	for i, p := range AspectPresets {
		names[i] = p.Name
	}
	return strings.Join(names, ",")
}

// SuggestPreset returns the closest preset name within edit distance 2.
func SuggestPreset(name string) (string, bool) {
	best, bestDist := "", 3
	for _, p := range AspectPresets {
		if d := levenshtein.ComputeDistance(name, p.Name); d < bestDist {
			best, bestDist = p.Name, d
		}
	}
	return best, best != ""
}

// ResolveDimensions returns the preset size when aspect is set and the given
// width and height otherwise. Either way the result is validated.
func ResolveDimensions(aspect string, width, height int) (int, int, error) {
	if aspect != "" {
		p, ok := PresetNamed(aspect)
		if !ok {
			if s, ok := SuggestPreset(aspect); ok {
				return 0, 0, fmt.Errorf("unknown aspect %s, did you mean %s?", aspect, s)
			}
			return 0, 0, fmt.Errorf("unknown aspect %s (%s)", aspect, PresetNames())
		}
		width, height = p.Width, p.Height
	}
	if err := ValidateDimensions(width, height); err != nil {
		return 0, 0, err
	}
	return width, height, nil
}
