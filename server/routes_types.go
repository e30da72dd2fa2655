// routes_types.go - Request- und Response-Typen der HTTP-API
// Enthaelt: TokenizeRequest/Response, EncodeRequest/Response,
// ScheduleRequest/Response, GenerateRequest

package server

import "github.com/mneves75/z-image-go/imagegen"

// TokenizeRequest is the body of POST /api/tokenize.
type TokenizeRequest struct {
	Prompt   string `json:"prompt"`
	Template bool   `json:"template,omitempty"`
}

type TokenizeResponse struct {
	IDs   []int32 `json:"ids"`
	Count int     `json:"count"`
}

// EncodeRequest is the body of POST /api/encode. IncludeHidden returns the
// full hidden states, one row per token.
type EncodeRequest struct {
	Prompt        string `json:"prompt"`
	Template      bool   `json:"template,omitempty"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
}

type EncodeResponse struct {
	Shape  []int       `json:"shape"`
	Count  int         `json:"count"`
	Mean   float64     `json:"mean"`
	Std    float64     `json:"std"`
	Hidden [][]float32 `json:"hidden,omitempty"`
}

// ScheduleRequest is the body of POST /api/schedule. Zero fields take the
// server's scheduler config.
type ScheduleRequest struct {
	Steps             int     `json:"steps"`
	Shift             float32 `json:"shift,omitempty"`
	NumTrainTimesteps int     `json:"num_train_timesteps,omitempty"`
}

type ScheduleResponse struct {
	Timesteps []float32 `json:"timesteps"`
	Sigmas    []float32 `json:"sigmas"`
}

// GenerateRequest is the body of POST /api/generate. Aspect overrides Width
// and Height; a nil Seed draws a random one.
type GenerateRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	Aspect         string  `json:"aspect,omitempty"`
	Steps          int     `json:"steps,omitempty"`
	Guidance       float64 `json:"guidance,omitempty"`
	Seed           *int64  `json:"seed,omitempty"`
	Format         string  `json:"format,omitempty"`
}

const (
	defaultSize  = 1024
	defaultSteps = 9
)

// generationRequest fills defaults and resolves dimensions, seed and format.
func (r GenerateRequest) generationRequest() (imagegen.GenerationRequest, error) {
	width, height := r.Width, r.Height
	if width == 0 {
		width = defaultSize
	}
	if height == 0 {
		height = defaultSize
	}
	width, height, err := imagegen.ResolveDimensions(r.Aspect, width, height)
	if err != nil {
		return imagegen.GenerationRequest{}, err
	}

	format, err := imagegen.ParseFormat(r.Format)
	if err != nil {
		return imagegen.GenerationRequest{}, err
	}

	steps := r.Steps
	if steps == 0 {
		steps = defaultSteps
	}

	return imagegen.GenerationRequest{
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		Width:          width,
		Height:         height,
		Steps:          steps,
		Guidance:       r.Guidance,
		Seed:           imagegen.Seeds(1, r.Seed)[0],
		Format:         format,
	}, nil
}
