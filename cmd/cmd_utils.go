// cmd_utils.go - Hilfsfunktionen fuer die Commands
// Hauptfunktionen: tokenizerOptions, loadTokenizer, newTable, humanBytes, truncateCell
package cmd

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/imagegen/tokenizer"
)

// tokenizerOptions - Optionen aus ZIMAGE_PRETOKENIZE und ZIMAGE_TOKENIZER_CACHE
func tokenizerOptions() []tokenizer.Option {
	var opts []tokenizer.Option
	if envconfig.Pretokenize() {
		opts = append(opts, tokenizer.WithPretokenizer(tokenizer.Qwen2Pattern))
	}
	if n := envconfig.TokenizerCache(); n > 0 {
		opts = append(opts, tokenizer.WithCache(int(n)))
	}
	return opts
}

// loadTokenizer - Laedt den Tokenizer aus dir oder dir/tokenizer
func loadTokenizer(dir string) (*tokenizer.Tokenizer, error) {
	tok, err := tokenizer.Load(envconfig.ExpandHome(dir), tokenizerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return tok, nil
}

// newTable - Tabelle im Stil der Listenausgabe
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// humanBytes - Formatiert eine Byte-Anzahl mit binaeren Einheiten
func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// truncateCell - Kuerzt s auf hoechstens width Terminalspalten
func truncateCell(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
