// seeds.go - Seed-Folgen für mehrere Bilder

package imagegen

import "math/rand/v2"

// Seeds returns count seeds (at least one). With a base seed the sequence is
// base, base+1, ...; otherwise every seed is a random non-negative 62-bit value.
func Seeds(count int, base *int64) []int64 {
	count = max(1, count)
	out := make([]int64, count)
	for i := range out {
		if base != nil {
			out[i] = *base + int64(i)
		} else {
			out[i] = rand.Int64N(1 << 62)
		}
	}
	return out
}
