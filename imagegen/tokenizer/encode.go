// encode.go - Text zu Token-IDs encodieren
//
// Enthält:
// - Encode: Special Tokens abtrennen, optional vorsegmentieren, BPE je Chunk
// - splitSpecial, pretokenize, encodeChunk
//
// Siehe auch: bpe.go für die Merge-Schleife, decode.go für die Umkehrung

package tokenizer

import (
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Eingaben ab 4 KiB werden parallel encodiert.
const parallelThreshold = 4096

type chunk struct {
	text    string
	special bool
}

// Encode converts text to token ids. Registered special tokens are matched
// verbatim; the remaining text is byte-level BPE encoded, as one chunk unless
// a pretokenizer is configured. Symbols missing from the vocabulary are
// dropped unless an unknown token is configured.
func (t *Tokenizer) Encode(text string) []int32 {
	ids := []int32{}
	if text == "" {
		return ids
	}

	var chunks []chunk
	for _, part := range t.splitSpecial(text) {
		if part.special || t.pretokenizer == nil {
			chunks = append(chunks, part)
			continue
		}
		for _, piece := range t.pretokenize(part.text) {
			chunks = append(chunks, chunk{text: piece})
		}
	}

	if len(text) < parallelThreshold || len(chunks) < 2 {
		for _, c := range chunks {
			ids = t.appendChunk(ids, c)
		}
		return ids
	}

	results := make([][]int32, len(chunks))
	var g errgroup.Group
	g.SetLimit(8)
	for i, c := range chunks {
		g.Go(func() error {
			results[i] = t.appendChunk(nil, c)
			return nil
		})
	}
	_ = g.Wait()
	for _, r := range results {
		ids = append(ids, r...)
	}
	return ids
}

func (t *Tokenizer) appendChunk(ids []int32, c chunk) []int32 {
	if c.special {
		return append(ids, t.special[c.text])
	}
	return append(ids, t.encodeChunk(c.text)...)
}

func (t *Tokenizer) encodeChunk(s string) []int32 {
	if t.cache != nil {
		if v, ok := t.cache.Get(s); ok {
			return v.([]int32)
		}
	}

	syms := t.bpe(s)
	ids := make([]int32, 0, len(syms))
	for _, sym := range syms {
		if id, ok := t.vocab[sym]; ok {
			ids = append(ids, id)
		} else if t.unknown >= 0 {
			ids = append(ids, t.unknown)
		}
	}

	if t.cache != nil {
		t.cache.Add(s, slices.Clip(ids))
	}
	return ids
}

// splitSpecial cuts text at registered special tokens, longest match first.
func (t *Tokenizer) splitSpecial(text string) []chunk {
	if len(t.specialOrder) == 0 {
		return []chunk{{text: text}}
	}

	var out []chunk
	rest := text
	for rest != "" {
		at, tok := len(rest), ""
		for _, s := range t.specialOrder {
			if i := strings.Index(rest, s); i >= 0 && i < at {
				at, tok = i, s
			}
		}
		if at > 0 {
			out = append(out, chunk{text: rest[:at]})
		}
		if tok == "" {
			break
		}
		out = append(out, chunk{text: tok, special: true})
		rest = rest[at+len(tok):]
	}
	return out
}

// pretokenize splits s with the configured regular expression. Text between
// matches is kept as its own piece so no input byte is lost.
func (t *Tokenizer) pretokenize(s string) []string {
	var pieces []string
	runes := []rune(s)
	pos := 0
	m, err := t.pretokenizer.FindStringMatch(s)
	for m != nil && err == nil {
		if m.Index > pos {
			pieces = append(pieces, string(runes[pos:m.Index]))
		}
		if m.Length > 0 {
			pieces = append(pieces, m.String())
		}
		pos = m.Index + m.Length
		m, err = t.pretokenizer.FindNextMatch(m)
	}
	if pos < len(runes) {
		pieces = append(pieces, string(runes[pos:]))
	}
	return pieces
}
