// generator.go - Bildgeneratoren
//
// Enthält:
// - GenerationRequest, GenerationResult mit geordneten Metadaten
// - ImageGenerator: gemeinsame Schnittstelle
// - StubGenerator: Validierung und Platzhalterbild
// - VerifiedGenerator: Manifest- und Komponentenprüfung vor dem Stub

package imagegen

import (
	"context"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mneves75/z-image-go/imagegen/manifest"
	"github.com/mneves75/z-image-go/logutil"
)

// GenerationRequest describes one image.
type GenerationRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
	Format         Format  `json:"format,omitempty"`
}

// Metadata keeps insertion order when encoded as JSON.
type Metadata = orderedmap.OrderedMap[string, string]

// GenerationResult is the written image and its parameters.
type GenerationResult struct {
	ImagePath string    `json:"image_path"`
	Metadata  *Metadata `json:"metadata"`
}

// ImageGenerator turns a request into an image file at outputPath.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerationRequest, outputPath string) (*GenerationResult, error)
}

// StubGenerator validates the request and writes a deterministic
// placeholder in place of a rendered image.
type StubGenerator struct {
	Policy DimensionPolicy
}

// NewStubGenerator returns a StubGenerator using DefaultDimensionPolicy.
func NewStubGenerator() *StubGenerator {
	return &StubGenerator{Policy: DefaultDimensionPolicy}
}

func (g *StubGenerator) Generate(ctx context.Context, req GenerationRequest, outputPath string) (*GenerationResult, error) {
	policy := g.Policy
	if policy.Multiple == 0 {
		policy = DefaultDimensionPolicy
	}
	if err := policy.Validate(req.Width, req.Height); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := WritePlaceholderFile(outputPath, req.Format, req.Width, req.Height, req.Seed, req.Prompt); err != nil {
		return nil, err
	}
	logutil.FromContext(ctx).Debug("placeholder written", "component", "pipeline", "path", outputPath, "seed", req.Seed)

	meta := orderedmap.New[string, string]()
	meta.Set("width", strconv.Itoa(req.Width))
	meta.Set("height", strconv.Itoa(req.Height))
	meta.Set("seed", strconv.FormatInt(req.Seed, 10))
	meta.Set("steps", strconv.Itoa(req.Steps))
	meta.Set("guidance", strconv.FormatFloat(req.Guidance, 'f', -1, 64))
	return &GenerationResult{ImagePath: outputPath, Metadata: meta}, nil
}

// VerifiedGenerator checks WeightsDir against its manifest and the required
// components on every call, then defers to a StubGenerator.
type VerifiedGenerator struct {
	WeightsDir string
	Stub       *StubGenerator
}

// NewVerifiedGenerator returns a VerifiedGenerator for dir.
func NewVerifiedGenerator(dir string) *VerifiedGenerator {
	return &VerifiedGenerator{WeightsDir: dir, Stub: NewStubGenerator()}
}

func (g *VerifiedGenerator) Generate(ctx context.Context, req GenerationRequest, outputPath string) (*GenerationResult, error) {
	if _, err := manifest.Verify(ctx, g.WeightsDir, ""); err != nil {
		return nil, err
	}
	if err := manifest.RequireComponents(g.WeightsDir); err != nil {
		return nil, err
	}
	stub := g.Stub
	if stub == nil {
		stub = NewStubGenerator()
	}
	return stub.Generate(ctx, req, outputPath)
}

var (
	_ ImageGenerator = (*StubGenerator)(nil)
	_ ImageGenerator = (*VerifiedGenerator)(nil)
)
