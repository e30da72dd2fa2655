package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	_ "image/png"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mneves75/z-image-go/imagegen"
	"github.com/mneves75/z-image-go/imagegen/models/qwen3"
	"github.com/mneves75/z-image-go/imagegen/models/zimage"
	"github.com/mneves75/z-image-go/imagegen/safetensors"
	"github.com/mneves75/z-image-go/imagegen/tensor"
	"github.com/mneves75/z-image-go/imagegen/tokenizer"
	"github.com/mneves75/z-image-go/version"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	vocab := map[string]int32{"a": 0, "b": 1, "c": 2, "Ġ": 3, "ab": 4, "abc": 5, "Ġa": 6, "<|im_end|>": 7}
	tok, err := tokenizer.New(vocab, strings.NewReader("#version: 0.2\na b\nab c\nĠ a\n"))
	require.NoError(t, err)
	return tok
}

// wave fills an array with deterministic values in [-scale, scale].
func wave(phase, scale float64, shape ...int) *tensor.Array {
	a := tensor.Zeros(shape...)
	d := a.Data()
	for i := range d {
		d[i] = float32(scale * math.Sin(phase+float64(i)*0.7))
	}
	return a
}

func testEncoder(t *testing.T) *qwen3.TextEncoder {
	t.Helper()
	cfg := &qwen3.Config{
		HiddenSize:        4,
		NumHiddenLayers:   1,
		NumAttentionHeads: 2,
		NumKeyValueHeads:  1,
		IntermediateSize:  6,
		RMSNormEps:        1e-6,
		HeadDim:           2,
		VocabSize:         8,
	}
	p := "model.layers.0."
	w := map[string]*tensor.Array{
		"model.embed_tokens.weight":           wave(0, 1, 8, 4),
		"model.norm.weight":                   tensor.Full(1, 4),
		p + "input_layernorm.weight":          tensor.Full(1, 4),
		p + "post_attention_layernorm.weight": tensor.Full(1, 4),
		p + "self_attn.q_proj.weight":         wave(1, 0.5, 4, 4),
		p + "self_attn.k_proj.weight":         wave(2, 0.5, 2, 4),
		p + "self_attn.v_proj.weight":         wave(3, 0.5, 2, 4),
		p + "self_attn.o_proj.weight":         wave(4, 0.5, 4, 4),
		p + "self_attn.q_norm.weight":         tensor.Full(1, 2),
		p + "self_attn.k_norm.weight":         tensor.Full(1, 2),
		p + "mlp.gate_proj.weight":            wave(5, 0.5, 6, 4),
		p + "mlp.up_proj.weight":              wave(6, 0.5, 6, 4),
		p + "mlp.down_proj.weight":            wave(7, 0.5, 4, 6),
	}
	enc, err := qwen3.New(safetensors.FromMap(w), cfg)
	require.NoError(t, err)
	return enc
}

func testServer(t *testing.T, cfg Config) (*Server, http.Handler) {
	t.Helper()
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = testTokenizer(t)
	}
	if cfg.Generator == nil {
		cfg.Generator = imagegen.NewStubGenerator()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s, s.GenerateRoutes(t.Context())
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(Config{Generator: imagegen.NewStubGenerator()})
	assert.ErrorContains(t, err, "tokenizer")

	_, err = New(Config{Tokenizer: testTokenizer(t)})
	assert.ErrorContains(t, err, "generator")

	s, err := New(Config{Tokenizer: testTokenizer(t), Generator: imagegen.NewStubGenerator()})
	require.NoError(t, err)
	assert.Equal(t, zimage.DefaultSchedulerConfig(), s.cfg.Scheduler)
	assert.Equal(t, imagegen.DefaultOutdir, s.cfg.OutputDir)
}

func TestVersionAndRequestID(t *testing.T) {
	_, h := testServer(t, Config{})

	w := do(t, h, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"version": version.Version}, decode[map[string]string](t, w))

	id := w.Header().Get(requestIDHeader)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "generated request id %q", id)

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(requestIDHeader, given)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, given, w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(requestIDHeader))
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := testServer(t, Config{})
	w := do(t, h, http.MethodGet, "/api/tokenize", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTokenize(t *testing.T) {
	_, h := testServer(t, Config{})

	cases := []struct {
		name string
		body any
		want TokenizeResponse
	}{
		{"word", TokenizeRequest{Prompt: "abc"}, TokenizeResponse{IDs: []int32{5}, Count: 1}},
		{"spaces", TokenizeRequest{Prompt: " abc ab"}, TokenizeResponse{IDs: []int32{3, 5, 3, 4}, Count: 4}},
		{"empty body", nil, TokenizeResponse{IDs: []int32{}, Count: 0}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/tokenize", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			got := decode[TokenizeResponse](t, w)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("tokenize mismatch (-want +got):\n%s", diff)
			}
		})
	}

	w := do(t, h, http.MethodPost, "/api/tokenize", TokenizeRequest{Prompt: "c", Template: true})
	require.Equal(t, http.StatusOK, w.Code)
	want := testTokenizer(t).Encode(qwen3.ApplyChatTemplate("c", false))
	assert.Equal(t, want, decode[TokenizeResponse](t, w).IDs)

	w = do(t, h, http.MethodPost, "/api/tokenize", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEncodeUnavailable(t *testing.T) {
	_, h := testServer(t, Config{})
	w := do(t, h, http.MethodPost, "/api/encode", EncodeRequest{Prompt: "abc"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), imagegen.ErrPipelineUnavailable.Error())
}

func TestEncode(t *testing.T) {
	enc := testEncoder(t)
	tok := testTokenizer(t)
	_, h := testServer(t, Config{Tokenizer: tok, Encoder: enc})

	w := do(t, h, http.MethodPost, "/api/encode", EncodeRequest{Prompt: " abc ab", IncludeHidden: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[EncodeResponse](t, w)

	want, ids := enc.EncodePrompt(tok, " abc ab", false)
	mean, std := tensor.MeanStd(want)
	assert.Equal(t, []int{1, 4, 4}, got.Shape)
	assert.Equal(t, len(ids), got.Count)
	assert.InDelta(t, mean, got.Mean, 1e-6)
	assert.InDelta(t, std, got.Std, 1e-6)

	require.Len(t, got.Hidden, 4)
	for i, row := range got.Hidden {
		require.Len(t, row, 4)
		for j, v := range row {
			assert.InDelta(t, want.At(0, i, j), v, 1e-6)
		}
	}

	w = do(t, h, http.MethodPost, "/api/encode", EncodeRequest{Prompt: "abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[EncodeResponse](t, w).Hidden)

	w = do(t, h, http.MethodPost, "/api/encode", EncodeRequest{Prompt: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchedule(t *testing.T) {
	custom := zimage.SchedulerConfig{NumTrainTimesteps: 1000, Shift: 1}
	_, h := testServer(t, Config{Scheduler: custom})

	cases := []struct {
		name string
		req  ScheduleRequest
		cfg  zimage.SchedulerConfig
	}{
		{"server config", ScheduleRequest{Steps: 4}, custom},
		{"shift override", ScheduleRequest{Steps: 9, Shift: 3}, zimage.SchedulerConfig{NumTrainTimesteps: 1000, Shift: 3}},
		{"train override", ScheduleRequest{Steps: 2, NumTrainTimesteps: 100}, zimage.SchedulerConfig{NumTrainTimesteps: 100, Shift: 1}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/schedule", tt.req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			got := decode[ScheduleResponse](t, w)

			s := zimage.NewFlowMatchEulerScheduler(tt.cfg, tt.req.Steps)
			want := ScheduleResponse{Timesteps: s.Timesteps, Sigmas: s.Sigmas}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("schedule mismatch (-want +got):\n%s", diff)
			}
			assert.Len(t, got.Sigmas, tt.req.Steps+1)
			assert.Zero(t, got.Sigmas[tt.req.Steps])
		})
	}

	for _, req := range []ScheduleRequest{{Steps: 0}, {Steps: 1001}, {Steps: 4, Shift: -1}, {Steps: 4, NumTrainTimesteps: -5}} {
		w := do(t, h, http.MethodPost, "/api/schedule", req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "request %+v", req)
	}
}

type generateResponse struct {
	ImagePath string            `json:"image_path"`
	Metadata  map[string]string `json:"metadata"`
}

func TestGenerate(t *testing.T) {
	outdir := t.TempDir()
	_, h := testServer(t, Config{OutputDir: outdir})

	seed := int64(42)
	w := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Prompt: "hi", Width: 256, Height: 320, Seed: &seed, Guidance: 0.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"metadata":{"width":"256","height":"320","seed":"42","steps":"9","guidance":"0.5"}`)

	got := decode[generateResponse](t, w)
	assert.Equal(t, outdir, filepath.Dir(got.ImagePath))
	assert.True(t, strings.HasPrefix(filepath.Base(got.ImagePath), imagegen.DefaultOutputBase+"-"))
	assert.Equal(t, ".png", filepath.Ext(got.ImagePath))

	f, err := os.Open(got.ImagePath)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 320, cfg.Height)
}

func TestGenerateDefaults(t *testing.T) {
	_, h := testServer(t, Config{})

	w := do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Prompt: "hi", Aspect: "16:9", Format: "bmp"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[generateResponse](t, w)
	assert.Equal(t, "1280", got.Metadata["width"])
	assert.Equal(t, "720", got.Metadata["height"])
	assert.Equal(t, strconv.Itoa(defaultSteps), got.Metadata["steps"])
	assert.Equal(t, ".bmp", filepath.Ext(got.ImagePath))

	seed, err := strconv.ParseInt(got.Metadata["seed"], 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seed, int64(0))

	w = do(t, h, http.MethodPost, "/api/generate", GenerateRequest{Prompt: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[generateResponse](t, w)
	assert.Equal(t, "1024", got.Metadata["width"])
}

func TestGenerateErrors(t *testing.T) {
	cases := []struct {
		name string
		gen  imagegen.ImageGenerator
		req  GenerateRequest
		code int
	}{
		{"too small", nil, GenerateRequest{Width: 128, Height: 256}, http.StatusBadRequest},
		{"not a multiple", nil, GenerateRequest{Width: 300, Height: 256}, http.StatusBadRequest},
		{"unknown aspect", nil, GenerateRequest{Aspect: "16:10"}, http.StatusBadRequest},
		{"bad format", nil, GenerateRequest{Format: "gif"}, http.StatusBadRequest},
		{"missing weights", imagegen.NewVerifiedGenerator(filepath.Join(t.TempDir(), "nope")), GenerateRequest{}, http.StatusServiceUnavailable},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, h := testServer(t, Config{Generator: tt.gen})
			w := do(t, h, http.MethodPost, "/api/generate", tt.req)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestAllowedHosts(t *testing.T) {
	s, _ := testServer(t, Config{})
	s.addr = &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 7860}
	h := s.GenerateRoutes(t.Context())

	cases := []struct {
		host string
		code int
	}{
		{"localhost:7860", http.StatusOK},
		{"127.0.0.1:7860", http.StatusOK},
		{"192.168.1.10", http.StatusOK},
		{"box.local", http.StatusOK},
		{"example.com", http.StatusForbidden},
	}
	for _, tt := range cases {
		t.Run(tt.host, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
			req.Host = tt.host
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, Config{Tokenizer: testTokenizer(t), Generator: imagegen.NewStubGenerator(), OutputDir: t.TempDir()})
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/version")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}
