package tensor

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-5)

func randArray(r *rand.Rand, shape ...int) *Array {
	a := Zeros(shape...)
	for i := range a.data {
		a.data[i] = r.Float32()*2 - 1
	}
	return a
}

func naiveMatmul(a, b []float32, m, k, n int) []float32 {
	out := make([]float32, m*n)
	for i := range m {
		for j := range n {
			var s float64
			for p := range k {
				s += float64(a[i*k+p]) * float64(b[p*n+j])
			}
			out[i*n+j] = float32(s)
		}
	}
	return out
}

func TestReshape(t *testing.T) {
	a := Arange(6)
	b := Reshape(a, 2, -1)
	assert.Equal(t, []int{2, 3}, b.Shape())
	assert.InDelta(t, 4, b.At(1, 1), 0)
	assert.Panics(t, func() { Reshape(a, 4, -1) })
	assert.Panics(t, func() { Reshape(a, -1, -1) })
}

func TestTranspose(t *testing.T) {
	a := Reshape(Arange(24), 2, 3, 4)
	b := Transpose(a, 1, 0, 2)
	require.Equal(t, []int{3, 2, 4}, b.Shape())
	for i := range 2 {
		for j := range 3 {
			for k := range 4 {
				assert.Equal(t, a.At(i, j, k), b.At(j, i, k))
			}
		}
	}

	c := Transpose(Reshape(Arange(6), 2, 3))
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, c.Floats())
}

func TestSliceConcatenate(t *testing.T) {
	a := Reshape(Arange(12), 3, 4)
	left := Slice(a, []int{0, 0}, []int{3, 2})
	right := Slice(a, []int{0, 2}, []int{3, 4})
	assert.Equal(t, []float32{0, 1, 4, 5, 8, 9}, left.Floats())

	back := Concatenate([]*Array{left, right}, 1)
	if diff := cmp.Diff(a.Floats(), back.Floats()); diff != "" {
		t.Errorf("concatenate mismatch (-want +got):\n%s", diff)
	}

	rows := Concatenate([]*Array{Slice(a, []int{2, 0}, []int{3, 4}), Slice(a, []int{0, 0}, []int{1, 4})}, 0)
	assert.Equal(t, []float32{8, 9, 10, 11, 0, 1, 2, 3}, rows.Floats())
}

func TestTileTake(t *testing.T) {
	a := New([]float32{1, 2}, 1, 2)
	assert.Equal(t, []float32{1, 2, 1, 2, 1, 2}, Tile(a, []int{3, 1}).Floats())

	emb := Reshape(Arange(6), 3, 2)
	got := Take(emb, []int32{2, 0, 2})
	assert.Equal(t, []int{3, 2}, got.Shape())
	assert.Equal(t, []float32{4, 5, 0, 1, 4, 5}, got.Floats())
}

func TestBroadcast(t *testing.T) {
	cases := []struct {
		name string
		a, b *Array
		want []float32
		dims []int
	}{
		{"same", New([]float32{1, 2}, 2), New([]float32{3, 4}, 2), []float32{4, 6}, []int{2}},
		{"suffix", Reshape(Arange(4), 2, 2), New([]float32{10, 20}, 2), []float32{10, 21, 12, 23}, []int{2, 2}},
		{"column", Reshape(Arange(4), 2, 2), New([]float32{10, 20}, 2, 1), []float32{10, 11, 22, 23}, []int{2, 2}},
		{"outer", New([]float32{1, 2}, 2, 1), New([]float32{10, 20, 30}, 1, 3), []float32{11, 21, 31, 12, 22, 32}, []int{2, 3}},
		{"scalar", New([]float32{5}), New([]float32{1, 2}, 2), []float32{6, 7}, []int{2}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := Add(tt.a, tt.b)
			assert.Equal(t, tt.dims, got.Shape())
			assert.Equal(t, tt.want, got.Floats())
		})
	}

	assert.Panics(t, func() { Add(Zeros(2, 3), Zeros(2)) })
}

func TestMatmul(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	a := randArray(r, 5, 7)
	b := randArray(r, 7, 3)
	got := Matmul(a, b)
	require.Equal(t, []int{5, 3}, got.Shape())
	if diff := cmp.Diff(naiveMatmul(a.data, b.data, 5, 7, 3), got.Floats(), approx); diff != "" {
		t.Errorf("matmul mismatch (-want +got):\n%s", diff)
	}

	bt := Transpose(b)
	if diff := cmp.Diff(got.Floats(), MatmulT(a, bt).Floats(), approx); diff != "" {
		t.Errorf("matmulT mismatch (-want +got):\n%s", diff)
	}
}

func TestMatmulBatched(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	a := randArray(r, 2, 3, 4, 5)
	b := randArray(r, 5, 6)
	got := Matmul(a, b)
	require.Equal(t, []int{2, 3, 4, 6}, got.Shape())
	for i := range 6 {
		want := naiveMatmul(a.data[i*20:(i+1)*20], b.data, 4, 5, 6)
		if diff := cmp.Diff(want, got.data[i*24:(i+1)*24], approx); diff != "" {
			t.Errorf("batch %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestMatmulEmpty(t *testing.T) {
	got := Matmul(Zeros(0, 4), Zeros(4, 3))
	assert.Equal(t, []int{0, 3}, got.Shape())
	assert.Equal(t, 0, got.Size())
	assert.Panics(t, func() { Matmul(Zeros(2, 3), Zeros(4, 3)) })
}

func TestSoftmax(t *testing.T) {
	inf := float32(math.Inf(-1))
	got := Softmax(New([]float32{0, 0, inf, 1, 2, 3}, 2, 3), -1)
	d := got.Data()
	assert.InDelta(t, 0.5, d[0], 1e-6)
	assert.InDelta(t, 0.5, d[1], 1e-6)
	assert.Zero(t, d[2])
	assert.InDelta(t, 1, d[3]+d[4]+d[5], 1e-6)
	assert.Greater(t, d[5], d[4])
}

func TestRMSNorm(t *testing.T) {
	x := New([]float32{3, 4}, 1, 2)
	w := New([]float32{1, 2}, 2)
	got := RMSNorm(x, w, 0)
	rms := math.Sqrt((9 + 16) / 2.0)
	assert.InDelta(t, 3/rms, got.At(0, 0), 1e-6)
	assert.InDelta(t, 8/rms, got.At(0, 1), 1e-6)
}

func TestActivations(t *testing.T) {
	x := New([]float32{-1, 0, 2}, 3)
	s := SiLU(x).Data()
	assert.InDelta(t, -1/(1+math.E), s[0], 1e-6)
	assert.Zero(t, s[1])
	assert.InDelta(t, 2/(1+math.Exp(-2)), s[2], 1e-6)
	assert.Equal(t, []float32{1, 0, 4}, Square(x).Floats())
	assert.InDelta(t, 0.5, Rsqrt(New([]float32{4}, 1)).Item(), 1e-7)
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd(New([]float32{1, 2, 3, 4}, 4))
	assert.InDelta(t, 2.5, mean, 1e-9)
	assert.InDelta(t, math.Sqrt(1.25), std, 1e-9)
	assert.True(t, AllFinite(Arange(3)))
	assert.False(t, AllFinite(New([]float32{float32(math.NaN())}, 1)))

	m := MeanAxis(Reshape(Arange(6), 2, 3), -1, true)
	assert.Equal(t, []int{2, 1}, m.Shape())
	assert.Equal(t, []float32{1, 4}, m.Floats())
}

func TestParallelForCoversAll(t *testing.T) {
	SetMaxWorkers(3)
	defer SetMaxWorkers(0)
	seen := make([]int, 101)
	parallelFor(len(seen), func(i int) { seen[i]++ })
	for i, n := range seen {
		if n != 1 {
			t.Fatalf("index %d visited %d times", i, n)
		}
	}
}
