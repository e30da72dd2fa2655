// errors.go - Fehlertypen der Bildgenerierung
//
// Enthält:
// - Sentinels für Dimensionen, Geräte, Gewichte und Pipeline
// - DimensionError mit Begründung
// - Aliase auf die Fehler aus manifest und safetensors

package imagegen

import (
	"errors"
	"fmt"

	"github.com/mneves75/z-image-go/imagegen/manifest"
	"github.com/mneves75/z-image-go/imagegen/safetensors"
)

var (
	ErrInvalidDimensions   = errors.New("invalid dimensions")
	ErrUnsupportedDevice   = errors.New("unsupported device")
	ErrCPUNotAllowed       = errors.New("CPU execution is disabled; pass --allow-cpu to override")
	ErrPipelineUnavailable = errors.New("pipeline unavailable")

	ErrWeightsMissing    = manifest.ErrMissing
	ErrIntegrityMismatch = manifest.ErrIntegrity
	ErrWeightsCorrupted  = safetensors.ErrCorrupt
)

type (
	MissingError   = manifest.MissingError
	IntegrityError = manifest.IntegrityError
)

// DimensionError reports a width/height pair rejected by a DimensionPolicy.
type DimensionError struct {
	Width, Height int
	Reason        string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid dimensions %dx%d: %s", e.Width, e.Height, e.Reason)
}

func (e *DimensionError) Is(target error) bool { return target == ErrInvalidDimensions }

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPipelineUnavailable, fmt.Sprintf(format, args...))
}
