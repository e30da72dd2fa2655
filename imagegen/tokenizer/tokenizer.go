// tokenizer.go - Byte-Level-BPE-Tokenizer für Qwen2/Qwen3-Vokabulare
//
// Enthält:
// - Tokenizer: Vokabular, Merge-Ränge, Special Tokens
// - New: Konstruktor aus Vokabular-Map und merges.txt
// - Option, WithPretokenizer, WithCache, WithUnknownToken, WithSpecialTokens

package tokenizer

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru"
)

// Qwen2Pattern is the pretokenizer split used by Qwen2 and Qwen3 tokenizers.
const Qwen2Pattern = `(?i:'s|'t|'re|'ve|'m|'ll|'d)|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`

type pair struct {
	left, right string
}

// Tokenizer is a byte-level BPE tokenizer. It is immutable after
// construction and safe for concurrent use.
type Tokenizer struct {
	vocab  map[string]int32
	values map[int32]string
	ranks  map[pair]int

	special      map[string]int32
	specialOrder []string

	pretokenizer *regexp2.Regexp
	cache        *lru.Cache
	unknown      int32

	pad, eos int32
}

// Option configures a Tokenizer at construction.
type Option func(*Tokenizer) error

// WithPretokenizer splits input with pattern before BPE. Without it the
// whole input is merged as a single chunk.
func WithPretokenizer(pattern string) Option {
	return func(t *Tokenizer) error {
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return fmt.Errorf("pretokenizer %q: %w", pattern, err)
		}
		t.pretokenizer = re
		return nil
	}
}

// WithCache memoizes the ids of up to size chunks.
func WithCache(size int) Option {
	return func(t *Tokenizer) error {
		if size <= 0 {
			return nil
		}
		c, err := lru.New(size)
		if err != nil {
			return err
		}
		t.cache = c
		return nil
	}
}

// WithUnknownToken emits id for symbols missing from the vocabulary instead
// of dropping them.
func WithUnknownToken(id int32) Option {
	return func(t *Tokenizer) error {
		if id < 0 {
			return fmt.Errorf("unknown token id %d is negative", id)
		}
		t.unknown = id
		return nil
	}
}

// WithSpecialTokens registers tokens that are matched verbatim before BPE.
func WithSpecialTokens(tokens map[string]int32) Option {
	return func(t *Tokenizer) error {
		for tok, id := range tokens {
			if tok == "" {
				continue
			}
			t.special[tok] = id
			t.values[id] = tok
		}
		return nil
	}
}

// New builds a tokenizer from a token→id vocabulary and the contents of a
// merges.txt file. The first non-empty line of merges is a header; every
// later line holds two space-separated symbols and its rank is its position
// after the header.
func New(vocab map[string]int32, merges io.Reader, opts ...Option) (*Tokenizer, error) {
	ranks, err := parseMerges(merges)
	if err != nil {
		return nil, err
	}

	t := &Tokenizer{
		vocab:   vocab,
		values:  make(map[int32]string, len(vocab)),
		ranks:   ranks,
		special: make(map[string]int32),
		unknown: -1,
		pad:     -1,
		eos:     -1,
	}
	for tok, id := range vocab {
		if id < 0 {
			return nil, fmt.Errorf("vocab: token %q has negative id %d", tok, id)
		}
		if prev, dup := t.values[id]; dup {
			return nil, fmt.Errorf("vocab: id %d assigned to both %q and %q", id, prev, tok)
		}
		t.values[id] = tok
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	t.specialOrder = slices.SortedFunc(maps.Keys(t.special), func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	return t, nil
}

func parseMerges(r io.Reader) (map[pair]int, error) {
	ranks := make(map[pair]int)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo, n := 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		n++
		if n == 1 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("merges: line %d: want 2 symbols, got %d", lineNo, len(fields))
		}
		ranks[pair{fields[0], fields[1]}] = n - 2
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("merges: %w", err)
	}
	return ranks, nil
}

// VocabSize returns the number of distinct ids, special tokens included.
func (t *Tokenizer) VocabSize() int { return len(t.values) }

// NumMerges returns the number of merge rules.
func (t *Tokenizer) NumMerges() int { return len(t.ranks) }

// TokenID looks up a single token string.
func (t *Tokenizer) TokenID(tok string) (int32, bool) {
	if id, ok := t.special[tok]; ok {
		return id, true
	}
	id, ok := t.vocab[tok]
	return id, ok
}

// Token returns the vocabulary string for id.
func (t *Tokenizer) Token(id int32) (string, bool) {
	s, ok := t.values[id]
	return s, ok
}

// PAD returns the padding token id or -1.
func (t *Tokenizer) PAD() int32 { return t.pad }

// EOS returns the end-of-sequence token id or -1.
func (t *Tokenizer) EOS() int32 { return t.eos }

// SpecialTokens returns the registered special tokens.
func (t *Tokenizer) SpecialTokens() map[string]int32 { return maps.Clone(t.special) }
