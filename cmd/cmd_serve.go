// cmd_serve.go - Server-Start und Umgebungsanzeige
// Hauptfunktionen: RunServer, EnvHandler
package cmd

import (
	"fmt"
	"maps"
	"net"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/imagegen"
	"github.com/mneves75/z-image-go/server"
)

// RunServer - Laedt die Modelle einmalig und startet den HTTP-Server
func RunServer(cmd *cobra.Command, _ []string) error {
	weights, _ := cmd.Flags().GetString("weights")
	outdir, _ := cmd.Flags().GetString("outdir")

	cfg, err := server.Load(cmd.Context(), envconfig.ExpandHome(weights), outdir, tokenizerOptions()...)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	return server.Serve(cmd.Context(), ln, cfg)
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the zimage HTTP server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
	cmd.Flags().String("weights", envconfig.Weights(), "Converted weights directory (tokenizer, text_encoder, manifest.json)")
	cmd.Flags().String("outdir", imagegen.DefaultOutdir, "Directory for generated images")
	return cmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the environment variables zimage reads",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
}

// EnvHandler - Gibt Name, Wert und Beschreibung aller Variablen aus
func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()
	table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		v := vars[name]
		value := fmt.Sprintf("%v", v.Value)
		if list, ok := v.Value.([]string); ok {
			value = strings.Join(list, ",")
		}
		table.Append([]string{name, truncateCell(value, 48), v.Description})
	}
	table.Render()
	return nil
}
