// cmd_weights.go - Download, Konvertierung und Integritaetspruefung der Gewichte
// Hauptfunktionen: FetchHandler, ConvertHandler, ManifestHandler, VerifyHandler
package cmd

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/huggingface"
	"github.com/mneves75/z-image-go/imagegen/convert"
	"github.com/mneves75/z-image-go/imagegen/manifest"
	"github.com/mneves75/z-image-go/logutil"
)

// newFetchCmd - Erstellt den fetch Command
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download Z-Image weights from Hugging Face",
		Args:  cobra.NoArgs,
		RunE:  FetchHandler,
	}
	cmd.Flags().String("repo", huggingface.DefaultRepo, "Hugging Face repository")
	cmd.Flags().String("output", envconfig.Raw(), "Local directory for the download")
	cmd.Flags().StringSlice("include", nil, "Only download files matching these globs")
	cmd.Flags().StringSlice("exclude", nil, "Skip files matching these globs")
	cmd.Flags().String("revision", "main", "Branch, tag or commit")
	return cmd
}

// FetchHandler - Laedt das Repository in ein lokales Verzeichnis
func FetchHandler(cmd *cobra.Command, _ []string) error {
	repo, _ := cmd.Flags().GetString("repo")
	output, _ := cmd.Flags().GetString("output")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	revision, _ := cmd.Flags().GetString("revision")
	dir := envconfig.ExpandHome(output)

	out := cmd.OutOrStdout()
	client := huggingface.NewClient()
	fmt.Fprintf(out, "→ %s/%s@%s into %s\n", client.BaseURL(), repo, revision, dir)

	// Fortschritt in 10%-Schritten ueber alle Dateien
	var mu sync.Mutex
	last := -1
	progress := func(p huggingface.Progress) {
		if p.Total <= 0 {
			return
		}
		pct := int(p.Downloaded*100/p.Total) / 10 * 10
		mu.Lock()
		defer mu.Unlock()
		if pct > last {
			last = pct
			fmt.Fprintf(out, "  %3d%%  %s / %s\n", pct, humanBytes(p.Downloaded), humanBytes(p.Total))
		}
	}

	ctx := logutil.Component(cmd.Context(), "weights")
	res, err := client.DownloadModel(ctx, repo, dir,
		huggingface.WithRevision(revision),
		huggingface.WithInclude(include...),
		huggingface.WithExclude(exclude...),
		huggingface.WithProgress(progress),
	)
	if err != nil {
		return err
	}

	table := newTable(out, "FILE", "SIZE", "STATUS")
	for _, f := range res.Files {
		status := "downloaded"
		if f.Skipped {
			status = "up to date"
		}
		table.Append([]string{truncateCell(f.Filename, 60), humanBytes(f.Size), status})
	}
	table.Render()

	fmt.Fprintf(out, "Download completed into %s (%s in %.1fs)\n", res.Dir, humanBytes(res.Total), res.Elapsed.Seconds())
	return nil
}

// newConvertCmd - Erstellt den convert Command
func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Cast weights to a target dtype and write a manifest",
		Args:  cobra.NoArgs,
		RunE:  ConvertHandler,
	}
	cmd.Flags().String("source", envconfig.Raw(), "Directory with the downloaded weights")
	cmd.Flags().String("output", envconfig.Weights(), "Directory for the converted weights")
	cmd.Flags().String("dtype", "bf16", "Target dtype: bf16 | fp16 | fp32")
	return cmd
}

// ConvertHandler - Konvertiert die Gewichte und schreibt manifest.json
func ConvertHandler(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")
	output, _ := cmd.Flags().GetString("output")
	dtypeName, _ := cmd.Flags().GetString("dtype")

	dtype, err := convert.ParseDType(dtypeName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ctx := logutil.Component(cmd.Context(), "weights")
	res, err := convert.Convert(ctx, envconfig.ExpandHome(source), envconfig.ExpandHome(output), dtype, func(name string) {
		fmt.Fprintf(out, "Converted %s -> %s\n", name, dtype)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Converted weights and wrote manifest at %s\n", res.ManifestPath)
	return nil
}

// newManifestCmd - Erstellt den manifest Command
func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Generate an integrity manifest for a directory",
		Args:  cobra.NoArgs,
		RunE:  ManifestHandler,
	}
	cmd.Flags().String("directory", "", "Directory to scan")
	_ = cmd.MarkFlagRequired("directory")
	return cmd
}

// ManifestHandler - Hasht alle Dateien und schreibt manifest.json
func ManifestHandler(cmd *cobra.Command, _ []string) error {
	directory, _ := cmd.Flags().GetString("directory")
	dir := envconfig.ExpandHome(directory)

	m, err := manifest.Build(logutil.Component(cmd.Context(), "weights"), dir)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, manifest.FileName)
	if err := manifest.Write(path, m); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote manifest: %s (%d files)\n", path, len(m.Files))
	return nil
}

// newVerifyCmd - Erstellt den verify Command
func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a weights directory against its manifest",
		Args:  cobra.NoArgs,
		RunE:  VerifyHandler,
	}
	cmd.Flags().String("directory", envconfig.Weights(), "Directory containing manifest.json")
	return cmd
}

// VerifyHandler - Prueft Hashes, Groessen und die benoetigten Komponenten
func VerifyHandler(cmd *cobra.Command, _ []string) error {
	directory, _ := cmd.Flags().GetString("directory")
	dir := envconfig.ExpandHome(directory)

	m, err := manifest.Verify(logutil.Component(cmd.Context(), "weights"), dir, "")
	if err != nil {
		return err
	}
	if err := manifest.RequireComponents(dir); err != nil {
		return err
	}

	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Verified %d files (%s) in %s\n", len(m.Files), humanBytes(total), dir)
	return nil
}
