// parallel.go - Begrenzte Parallelität für zeilenweise Kernels
//
// Enthält:
// - SetMaxWorkers / Workers: globale Obergrenze (Standard GOMAXPROCS)
// - parallelFor: verteilt Indizes in Blöcken über eine errgroup

package tensor

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var maxWorkers atomic.Int64

// SetMaxWorkers caps the goroutines used by a single op. n <= 0 restores the
// default of GOMAXPROCS.
func SetMaxWorkers(n int) {
	maxWorkers.Store(int64(n))
}

// Workers returns the effective worker limit.
func Workers() int {
	if n := maxWorkers.Load(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}

// parallelFor calls fn(i) for every i in [0, n). Indices are handed out in
// contiguous blocks; fn must only write to state owned by index i.
func parallelFor(n int, fn func(i int)) {
	w := min(Workers(), n)
	if w <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(w)
	block := (n + w - 1) / w
	for lo := 0; lo < n; lo += block {
		hi := min(lo+block, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
