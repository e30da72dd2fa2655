package safetensors

import "errors"

var (
	// ErrCorrupt marks files whose header or data cannot be interpreted.
	ErrCorrupt = errors.New("weights corrupted")

	// ErrMissingParameter is joined once per tensor LoadModule could not find.
	ErrMissingParameter = errors.New("missing parameter")

	ErrNotFound = errors.New("tensor not found")
)
