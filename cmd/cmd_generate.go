// cmd_generate.go - Bildgenerierung und Benchmark
// Hauptfunktionen: GenerateHandler, BenchHandler
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mneves75/z-image-go/imagegen"
	"github.com/mneves75/z-image-go/logutil"
)

// newGenerateCmd - Erstellt den generate Command
func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate images from a prompt",
		Args:  cobra.NoArgs,
		RunE:  GenerateHandler,
	}
	imagegen.RegisterFlags(cmd)
	return cmd
}

// GenerateHandler - Erzeugt --num-images Bilder mit aufsteigenden Seeds
func GenerateHandler(cmd *cobra.Command, _ []string) error {
	opts, err := imagegen.ParseOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	width, height, err := imagegen.ResolveDimensions(opts.Aspect, opts.Width, opts.Height)
	if err != nil {
		return err
	}

	selection, err := imagegen.SelectDevice(opts.Device, opts.AllowCPU)
	if err != nil {
		return err
	}

	ctx := logutil.Component(cmd.Context(), "pipeline")
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Device: %s (%s)\n", selection.Device, selection.Reason)

	gen := opts.Generator()
	seeds := imagegen.Seeds(opts.NumImages, opts.Seed)
	ts := time.Now()
	start := time.Now()

	for i, seed := range seeds {
		path, err := imagegen.ResolveOutput(opts.Output, opts.Outdir, i, ts)
		if err != nil {
			return err
		}
		path = opts.Format.WithExt(path)

		fmt.Fprintf(out, "[%d/%d] seed=%d size=%dx%d steps=%d guidance=%g -> %s\n",
			i+1, len(seeds), seed, width, height, opts.Steps, opts.Guidance, path)

		imgStart := time.Now()
		res, err := gen.Generate(ctx, opts.Request(width, height, seed), path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %s in %.2fs\n", res.ImagePath, time.Since(imgStart).Seconds())

		if opts.Format == imagegen.FormatPNG {
			imagegen.DisplayImage(out, res.ImagePath)
		}
	}

	fmt.Fprintf(out, "Done in %.2fs\n", time.Since(start).Seconds())
	return nil
}

const benchSeed = 1234

// newBenchCmd - Erstellt den bench Command
func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time placeholder generation at 512x512",
		Args:  cobra.NoArgs,
		RunE:  BenchHandler,
	}
	cmd.Flags().Int("iterations", 3, "Number of images to write")
	return cmd
}

// BenchHandler - Schreibt Stub-Bilder nach $TMPDIR/zimage-bench und misst die Zeit
func BenchHandler(cmd *cobra.Command, _ []string) error {
	iterations, err := cmd.Flags().GetInt("iterations")
	if err != nil {
		return err
	}
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	dir := filepath.Join(os.TempDir(), "zimage-bench")
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	ctx := logutil.Component(cmd.Context(), "pipeline")
	gen := imagegen.NewStubGenerator()
	base := int64(benchSeed)
	ts := time.Now()
	start := time.Now()
	for i, seed := range imagegen.Seeds(iterations, &base) {
		req := imagegen.GenerationRequest{
			Prompt: "bench",
			Width:  512,
			Height: 512,
			Steps:  1,
			Seed:   seed,
			Format: imagegen.FormatPNG,
		}
		path := filepath.Join(dir, imagegen.OutputFilename(i, ts, "bench"))
		if _, err := gen.Generate(ctx, req, path); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Bench wrote %d images to %s in %.2fs\n", iterations, dir, time.Since(start).Seconds())
	return nil
}
