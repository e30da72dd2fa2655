// matmul.go - Batch-Matrixmultiplikation über gonum/blas32
//
// Enthält:
// - Matmul: a @ b mit gebroadcasteten Batch-Dimensionen
// - MatmulT: a @ bᵀ, der Normalfall für Linear-Gewichte [out, in]

package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Matmul multiplies the trailing two dimensions: [..., m, k] @ [..., k, n].
func Matmul(a, b *Array) *Array {
	return matmul(a, b, false)
}

// MatmulT multiplies by the transpose of b: [..., m, k] @ [..., n, k]ᵀ.
func MatmulT(a, b *Array) *Array {
	return matmul(a, b, true)
}

func matmul(a, b *Array, transB bool) *Array {
	if a.NDim() < 2 || b.NDim() < 2 {
		panic(fmt.Sprintf("tensor: matmul needs at least 2 dims, got %v and %v", a.shape, b.shape))
	}
	m, k := a.shape[a.NDim()-2], a.shape[a.NDim()-1]
	kb, n := b.shape[b.NDim()-2], b.shape[b.NDim()-1]
	tB := blas.NoTrans
	if transB {
		kb, n = n, kb
		tB = blas.Trans
	}
	if k != kb {
		panic(fmt.Sprintf("tensor: matmul inner dimensions differ: %v and %v (transposed=%v)", a.shape, b.shape, transB))
	}

	batchA, batchB := a.shape[:a.NDim()-2], b.shape[:b.NDim()-2]
	batch := broadcastShapes(batchA, batchB)
	out := Zeros(append(append([]int{}, batch...), m, n)...)
	if m == 0 || n == 0 || k == 0 {
		return out
	}

	bRows, bCols := b.shape[b.NDim()-2], b.shape[b.NDim()-1]
	parallelFor(numel(batch), func(i int) {
		ao := broadcastOffset(i, batch, batchA) * m * k
		bo := broadcastOffset(i, batch, batchB) * bRows * bCols
		blas32.Gemm(blas.NoTrans, tB, 1,
			blas32.General{Rows: m, Cols: k, Stride: k, Data: a.data[ao : ao+m*k]},
			blas32.General{Rows: bRows, Cols: bCols, Stride: bCols, Data: b.data[bo : bo+bRows*bCols]},
			0,
			blas32.General{Rows: m, Cols: n, Stride: n, Data: out.data[i*m*n : (i+1)*m*n]},
		)
	})
	return out
}
