// options.go - Optionen und Flag-Definitionen fuer die Bildgenerierung.
//
// Dieses Modul enthaelt:
// - Options Struktur fuer Generierungsparameter
// - Standardwerte und Flag-Registrierung
// - Auslesen der Flags in Options

package imagegen

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mneves75/z-image-go/envconfig"
)

// DefaultPrompt is used when no prompt is given.
const DefaultPrompt = "Analog film portrait of a skateboarder, shallow depth of field"

// Options holds the generate flag set.
type Options struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Guidance       float64
	Width          int
	Height         int
	Aspect         string
	Seed           *int64
	NumImages      int
	Output         string
	Outdir         string
	Device         Device
	AllowCPU       bool
	Weights        string
	Format         Format
}

// DefaultOptions returns the default generation options.
func DefaultOptions() Options {
	return Options{
		Prompt:    DefaultPrompt,
		Steps:     9,
		Width:     1024,
		Height:    1024,
		NumImages: 1,
		Device:    DeviceAuto,
		AllowCPU:  envconfig.AllowCPU(),
		Format:    FormatPNG,
	}
}

// RegisterFlags adds the generation flags to cmd.
func RegisterFlags(cmd *cobra.Command) {
	d := DefaultOptions()
	f := cmd.Flags()
	f.StringP("prompt", "p", d.Prompt, "Text prompt")
	f.String("negative-prompt", "", "Negative prompt")
	f.IntP("steps", "s", d.Steps, "Number of inference steps")
	f.Float64("guidance-scale", d.Guidance, "CFG guidance scale (Turbo expects ~0.0)")
	f.Int("width", d.Width, "Width in pixels (ignored when --aspect is set)")
	f.Int("height", d.Height, "Height in pixels (ignored when --aspect is set)")
	f.String("aspect", "", "Aspect preset: "+PresetNames())
	f.Int64("seed", 0, "Seed for reproducibility (increments per image)")
	f.Int("num-images", d.NumImages, "Number of images to generate")
	f.StringP("output", "o", "", "Output file or directory")
	f.String("outdir", "", "Directory for outputs (ignored when --output is a file)")
	f.String("device", string(d.Device), "Device: auto | metal | cpu")
	f.Bool("allow-cpu", d.AllowCPU, "Permit CPU execution")
	f.String("weights", "", "Weights directory containing manifest.json; enables the integrity check")
	f.String("format", string(d.Format), "Image format: png | bmp | tiff")
}

// ParseOptionsFromFlags reads the flags registered by RegisterFlags.
func ParseOptionsFromFlags(cmd *cobra.Command) (Options, error) {
	opts := DefaultOptions()
	f := cmd.Flags()

	var err error
	get := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	get(func() (e error) { opts.Prompt, e = f.GetString("prompt"); return })
	get(func() (e error) { opts.NegativePrompt, e = f.GetString("negative-prompt"); return })
	get(func() (e error) { opts.Steps, e = f.GetInt("steps"); return })
	get(func() (e error) { opts.Guidance, e = f.GetFloat64("guidance-scale"); return })
	get(func() (e error) { opts.Width, e = f.GetInt("width"); return })
	get(func() (e error) { opts.Height, e = f.GetInt("height"); return })
	get(func() (e error) { opts.Aspect, e = f.GetString("aspect"); return })
	get(func() (e error) { opts.NumImages, e = f.GetInt("num-images"); return })
	get(func() (e error) { opts.Output, e = f.GetString("output"); return })
	get(func() (e error) { opts.Outdir, e = f.GetString("outdir"); return })
	get(func() (e error) { opts.AllowCPU, e = f.GetBool("allow-cpu"); return })
	get(func() (e error) { opts.Weights, e = f.GetString("weights"); return })
	if err != nil {
		return opts, err
	}

	if f.Changed("seed") {
		seed, err := f.GetInt64("seed")
		if err != nil {
			return opts, err
		}
		opts.Seed = &seed
	}

	device, _ := f.GetString("device")
	if opts.Device, err = ParseDevice(device); err != nil {
		return opts, err
	}
	format, _ := f.GetString("format")
	if opts.Format, err = ParseFormat(format); err != nil {
		return opts, err
	}
	if opts.Steps <= 0 {
		return opts, fmt.Errorf("steps must be positive, got %d", opts.Steps)
	}
	return opts, nil
}

// Request builds the request for one seed.
func (o Options) Request(width, height int, seed int64) GenerationRequest {
	return GenerationRequest{
		Prompt:         o.Prompt,
		NegativePrompt: o.NegativePrompt,
		Width:          width,
		Height:         height,
		Steps:          o.Steps,
		Guidance:       o.Guidance,
		Seed:           seed,
		Format:         o.Format,
	}
}

// Generator returns a VerifiedGenerator when Weights is set and a
// StubGenerator otherwise.
func (o Options) Generator() ImageGenerator {
	if o.Weights != "" {
		return NewVerifiedGenerator(envconfig.ExpandHome(o.Weights))
	}
	return NewStubGenerator()
}
