// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs, setupContext
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/imagegen"
	"github.com/mneves75/z-image-go/imagegen/tensor"
	"github.com/mneves75/z-image-go/logutil"
	"github.com/mneves75/z-image-go/version"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// setupContext - Legt den Logger in den Command-Context und setzt die Worker-Grenze
func setupContext(cmd *cobra.Command, _ []string) error {
	log := logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel())
	ctx := logutil.WithLogger(cmd.Context(), log.With("component", "cli"))
	cmd.SetContext(ctx)

	if n := envconfig.NumThreads(); n > 0 {
		tensor.SetMaxWorkers(int(n))
	}
	logutil.Trace(ctx, "cli start", "command", cmd.CommandPath(), "workers", tensor.Workers())
	return nil
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:               "zimage",
		Short:             "Z-Image text conditioning, weight tooling and image generation",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupContext,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "zimage version %s\n", version.Version)
				return nil
			}

			// Ohne Subcommand generiert ein gesetzter Prompt direkt ein Bild
			if cmd.Flags().Changed("prompt") {
				return GenerateHandler(cmd, args)
			}

			cmd.Print(cmd.UsageString())
			return nil
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	imagegen.RegisterFlags(rootCmd)

	// Commands erstellen
	generateCmd := newGenerateCmd()
	smokeCmd := newSmokeCmd()
	tokenizeCmd := newTokenizeCmd()
	scheduleCmd := newScheduleCmd()
	fetchCmd := newFetchCmd()
	convertCmd := newConvertCmd()
	manifestCmd := newManifestCmd()
	verifyCmd := newVerifyCmd()
	benchCmd := newBenchCmd()
	serveCmd := newServeCmd()
	envCmd := newEnvCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["ZIMAGE_DEBUG"], envVars["ZIMAGE_NUM_THREADS"]}

	for _, cmd := range []*cobra.Command{
		generateCmd,
		smokeCmd,
		tokenizeCmd,
		fetchCmd,
		convertCmd,
		serveCmd,
	} {
		switch cmd {
		case generateCmd:
			appendEnvDocs(cmd, append(envs, envVars["ZIMAGE_ALLOW_CPU"]))
		case smokeCmd, tokenizeCmd:
			appendEnvDocs(cmd, append(envs,
				envVars["ZIMAGE_WEIGHTS"],
				envVars["ZIMAGE_PRETOKENIZE"],
				envVars["ZIMAGE_TOKENIZER_CACHE"],
			))
		case fetchCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["ZIMAGE_RAW"],
				envVars["HF_TOKEN"],
				envVars["HF_ENDPOINT"],
			})
		case convertCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["ZIMAGE_RAW"], envVars["ZIMAGE_WEIGHTS"]})
		case serveCmd:
			appendEnvDocs(cmd, append(envs,
				envVars["ZIMAGE_HOST"],
				envVars["ZIMAGE_ORIGINS"],
				envVars["ZIMAGE_WEIGHTS"],
				envVars["ZIMAGE_PRETOKENIZE"],
				envVars["ZIMAGE_TOKENIZER_CACHE"],
			))
		}
	}

	rootCmd.AddCommand(
		generateCmd,
		smokeCmd,
		tokenizeCmd,
		scheduleCmd,
		fetchCmd,
		convertCmd,
		manifestCmd,
		verifyCmd,
		benchCmd,
		serveCmd,
		envCmd,
	)

	return rootCmd
}
