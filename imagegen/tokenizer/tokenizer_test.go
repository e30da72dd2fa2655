package tokenizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tiny(t *testing.T, opts ...Option) *Tokenizer {
	t.Helper()
	tok, err := LoadFiles("testdata/tiny/vocab.json", "testdata/tiny/merges.txt", opts...)
	require.NoError(t, err)
	return tok
}

func TestByteCodec(t *testing.T) {
	assert.Equal(t, 'Ġ', byteToRune[' '])
	assert.Equal(t, 'Ċ', byteToRune['\n'])
	assert.Equal(t, rune(256), byteToRune[0])
	assert.Equal(t, 'A', byteToRune['A'])
	assert.Equal(t, rune(0xAE), byteToRune[0xAE])
	assert.Equal(t, rune(256+67), byteToRune[0xAD])

	assert.Len(t, runeToByte, 256)
	for b := range 256 {
		assert.Equal(t, byte(b), runeToByte[byteToRune[b]])
	}
}

func TestEncode(t *testing.T) {
	tok := tiny(t)
	cases := []struct {
		in   string
		want []int32
	}{
		{"", []int32{}},
		{"c", []int32{2}},
		{"abc", []int32{5}},
		{"abab", []int32{4, 4}},
		{" abc", []int32{3, 5}},
		{" a", []int32{6}},
		{"ad", []int32{0}},
		{"<|im_end|>", []int32{}},
	}
	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			got := tok.Encode(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Encode(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	tok := tiny(t)
	in := " abc ab cab"
	first := tok.Encode(in)
	for range 5 {
		assert.Equal(t, first, tok.Encode(in))
	}
}

func TestUnknownToken(t *testing.T) {
	tok := tiny(t, WithUnknownToken(99))
	assert.Equal(t, []int32{0, 99}, tok.Encode("ad"))

	_, err := LoadFiles("testdata/tiny/vocab.json", "testdata/tiny/merges.txt", WithUnknownToken(-1))
	assert.Error(t, err)
}

func TestLoadRegistersSpecialTokens(t *testing.T) {
	tok, err := Load("testdata/tiny")
	require.NoError(t, err)

	assert.Equal(t, []int32{101, 5, 7, 100}, tok.Encode("<|im_start|>abc<|im_end|><|endoftext|>"))
	assert.Equal(t, []int32{0, 100, 3}, tok.Encode("ax<|endoftext|> "))
	assert.Equal(t, int32(7), tok.EOS())
	assert.Equal(t, int32(100), tok.PAD())
	assert.Len(t, tok.SpecialTokens(), 3)
}

func TestResolveDir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "tokenizer")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, VocabFile), []byte("{}"), 0o644))
	assert.Equal(t, sub, ResolveDir(root))
	assert.Equal(t, sub, ResolveDir(sub))
}

func TestDecode(t *testing.T) {
	tok, err := Load("testdata/tiny")
	require.NoError(t, err)

	assert.Equal(t, " abc", tok.Decode([]int32{3, 5}))
	assert.Equal(t, "ab<|endoftext|>a", tok.Decode([]int32{4, 100, 0}))
	assert.Equal(t, "", tok.Decode([]int32{12345}))
}

func TestParseMerges(t *testing.T) {
	ranks, err := parseMerges(strings.NewReader("#version: 0.2\na b\n\nab c\r\n"))
	require.NoError(t, err)
	assert.Equal(t, map[pair]int{{"a", "b"}: 0, {"ab", "c"}: 1}, ranks)

	_, err = parseMerges(strings.NewReader("#header\na b c\n"))
	assert.ErrorContains(t, err, "line 2")

	ranks, err = parseMerges(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ranks)
}

func TestNewRejectsBadVocab(t *testing.T) {
	_, err := New(map[string]int32{"a": 1, "b": 1}, strings.NewReader("#\n"))
	assert.ErrorContains(t, err, "assigned to both")

	_, err = New(map[string]int32{"a": -1}, strings.NewReader("#\n"))
	assert.Error(t, err)

	_, err = LoadFiles("testdata/tiny/merges.txt", "testdata/tiny/merges.txt")
	assert.Error(t, err)
}

func TestPretokenize(t *testing.T) {
	tok := tiny(t, WithPretokenizer(Qwen2Pattern))
	got := tok.pretokenize("hi there, 12")
	assert.Equal(t, []string{"hi", " there", ",", " ", "1", "2"}, got)
	assert.Equal(t, []int32{3, 5, 3, 5}, tok.Encode(" abc abc"))

	_, err := LoadFiles("testdata/tiny/vocab.json", "testdata/tiny/merges.txt", WithPretokenizer("("))
	assert.Error(t, err)
}

func TestEncodeLargeInputParallel(t *testing.T) {
	in := strings.Repeat(" abc", 1100)
	want := make([]int32, 0, 2200)
	for range 1100 {
		want = append(want, 3, 5)
	}

	tok := tiny(t, WithPretokenizer(Qwen2Pattern), WithCache(16))
	assert.Equal(t, want, tok.Encode(in))
	assert.Equal(t, want, tok.Encode(in))
	assert.Equal(t, want, tiny(t).Encode(in))
}

func repoFile(t *testing.T, rel string) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, rel)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}

func TestFixturePromptIDs(t *testing.T) {
	weights := repoFile(t, ".cache/hf/Z-Image-Turbo")
	fixture := repoFile(t, "testdata/zimage_model_fixtures.json")
	if _, err := os.Stat(filepath.Join(weights, "tokenizer", VocabFile)); err != nil {
		t.Skip("tokenizer files not downloaded")
	}
	b, err := os.ReadFile(fixture)
	if err != nil {
		t.Skip("model fixtures not present")
	}

	var fx struct {
		TokenIDs []int32 `json:"token_ids_32"`
	}
	require.NoError(t, json.Unmarshal(b, &fx))
	require.GreaterOrEqual(t, len(fx.TokenIDs), 13)

	tok, err := LoadFiles(filepath.Join(weights, "tokenizer", VocabFile), filepath.Join(weights, "tokenizer", MergesFile))
	require.NoError(t, err)
	ids := tok.Encode("Analog film portrait of a skateboarder, shallow depth of field")
	require.GreaterOrEqual(t, len(ids), 13)
	if diff := cmp.Diff(fx.TokenIDs[:13], ids[:13]); diff != "" {
		t.Errorf("fixture ids mismatch (-want +got):\n%s", diff)
	}
}
