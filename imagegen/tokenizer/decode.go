// decode.go - Token-IDs zu Text dekodieren

package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Decode converts ids back to text. Special tokens are written verbatim and
// ids outside the vocabulary are skipped.
func (t *Tokenizer) Decode(ids []int32) string {
	var raw []byte
	var sb strings.Builder
	for _, id := range ids {
		tok, ok := t.values[id]
		if !ok {
			continue
		}
		if _, special := t.special[tok]; special {
			sb.Write(raw)
			raw = raw[:0]
			sb.WriteString(tok)
			continue
		}
		for _, r := range tok {
			if b, ok := runeToByte[r]; ok {
				raw = append(raw, b)
			} else {
				raw = utf8.AppendRune(raw, r)
			}
		}
	}
	sb.Write(raw)
	return sb.String()
}
