package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mneves75/z-image-go/imagegen/nn"
	"github.com/mneves75/z-image-go/imagegen/tensor"
)

func sample() map[string]*tensor.Array {
	return map[string]*tensor.Array{
		"b.weight": tensor.New([]float32{1, -2.5, 0.125, 3}, 2, 2),
		"a.bias":   tensor.New([]float32{0.5, 1}, 2),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, dtype := range []DType{F32, F16, BF16} {
		t.Run(string(dtype), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "w.safetensors")
			require.NoError(t, Save(path, sample(), map[string]string{"format": "pt"}, dtype))

			sf, err := Open(path)
			require.NoError(t, err)
			defer sf.Close()

			assert.Equal(t, []string{"a.bias", "b.weight"}, sf.Names())
			assert.Equal(t, "pt", sf.Metadata()["format"])
			info, ok := sf.Info("b.weight")
			require.True(t, ok)
			assert.Equal(t, dtype, info.DType)
			assert.Equal(t, []int{2, 2}, info.Shape)

			got, err := sf.Tensor("b.weight")
			require.NoError(t, err)
			// every sample value is exactly representable in bf16 and f16
			assert.Equal(t, []float32{1, -2.5, 0.125, 3}, got.Floats())

			_, err = sf.Tensor("nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestHeaderPadding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.safetensors")
	require.NoError(t, Save(path, sample(), nil, F32))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	n := binary.LittleEndian.Uint64(b)
	assert.Zero(t, n%8)
	assert.Equal(t, int(8+n+6*4), len(b))
}

func TestOpenCorrupt(t *testing.T) {
	dir := t.TempDir()
	cases := map[string][]byte{
		"short":   {1, 2, 3},
		"length":  binary.LittleEndian.AppendUint64(nil, 1<<40),
		"json":    append(binary.LittleEndian.AppendUint64(nil, 2), '{', 'x'),
		"offsets": header(t, map[string]any{"x": TensorInfo{DType: F32, Shape: []int{2}, DataOffsets: [2]int64{0, 64}}}),
		"size":    append(header(t, map[string]any{"x": TensorInfo{DType: F32, Shape: []int{3}, DataOffsets: [2]int64{0, 8}}}), make([]byte, 8)...),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, b, 0o644))
			_, err := Open(path)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func header(t *testing.T, h map[string]any) []byte {
	t.Helper()
	js, err := json.Marshal(h)
	require.NoError(t, err)
	return append(binary.LittleEndian.AppendUint64(nil, uint64(len(js))), js...)
}

func TestDecodeIntegerAndDouble(t *testing.T) {
	b := binary.LittleEndian.AppendUint32(nil, uint32(0xFFFFFFFE))
	got, err := decode(I32, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{-2}, got)

	b = binary.LittleEndian.AppendUint64(nil, 0x3FF8000000000000)
	got, err = decode(F64, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5}, got)

	_, err = decode(F32, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseDType(t *testing.T) {
	for in, want := range map[string]DType{"bf16": BF16, "bfloat16": BF16, "FP16": F16, "float32": F32} {
		got, err := ParseDType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDType("int4")
	assert.Error(t, err)
}

func TestLoadSharded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(filepath.Join(dir, "s1.safetensors"), map[string]*tensor.Array{"x": tensor.Arange(2)}, nil, F32))
	require.NoError(t, Save(filepath.Join(dir, "s2.safetensors"), map[string]*tensor.Array{"y": tensor.Arange(3)}, nil, F32))
	idx := `{"metadata":{},"weight_map":{"x":"s1.safetensors","y":"s2.safetensors"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte(idx), 0o644))

	w, err := LoadDir(dir)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"x", "y"}, w.ListTensors()); diff != "" {
		t.Errorf("tensors (-want +got):\n%s", diff)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"metadata":{}}`), 0o644))
	_, err = LoadSharded(dir, "bad.json")
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ghost.json"), []byte(`{"weight_map":{"z":"s1.safetensors"}}`), 0o644))
	_, err = LoadSharded(dir, "ghost.json")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type testBlock struct {
	Proj nn.LinearLayer `weight:"proj"`
	Norm *nn.RMSNorm    `weight:"norm"`
	Gate nn.LinearLayer `weight:"gate,optional"`
}

type testModel struct {
	Embed  *nn.Embedding `weight:"embed"`
	Layers []*testBlock  `weight:"layers"`
	Scale  *tensor.Array `weight:"scale,optional"`
	Steps  int
}

func TestLoadModule(t *testing.T) {
	w := FromMap(map[string]*tensor.Array{
		"m.embed.weight":         tensor.Zeros(4, 2),
		"m.layers.0.proj.weight": tensor.Zeros(2, 2),
		"m.layers.0.proj.bias":   tensor.Zeros(2),
		"m.layers.0.norm.weight": tensor.Full(1, 2),
		"m.layers.1.proj.weight": tensor.Zeros(2, 2),
		"m.layers.1.norm.weight": tensor.Full(1, 2),
		"m.layers.1.gate.weight": tensor.Zeros(3, 2),
	})

	m := &testModel{Layers: make([]*testBlock, 2)}
	require.NoError(t, LoadModule(m, w, "m"))
	assert.NotNil(t, m.Embed.Weight)
	assert.Nil(t, m.Scale)
	assert.NotNil(t, m.Layers[0].Proj.(*nn.Linear).Bias)
	assert.Nil(t, m.Layers[1].Proj.(*nn.Linear).Bias)
	assert.Nil(t, m.Layers[0].Gate)
	assert.Equal(t, 3, m.Layers[1].Gate.OutputDim())
}

func TestLoadModuleJoinsMissing(t *testing.T) {
	w := FromMap(map[string]*tensor.Array{"embed.weight": tensor.Zeros(4, 2)})
	m := &testModel{Layers: make([]*testBlock, 1)}
	err := LoadModule(m, w, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingParameter)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 2)
	assert.Contains(t, err.Error(), "layers.0.proj.weight")
	assert.Contains(t, err.Error(), "layers.0.norm.weight")

	assert.Error(t, LoadModule(testModel{}, w, ""))
}
