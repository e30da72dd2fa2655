// bpe.go - BPE-Merge-Schleife
//
// Enthält:
// - bpe: wendet Merges mit dem niedrigsten Rang an, bis keiner mehr passt

package tokenizer

import "math"

// bpe splits s into byte symbols and repeatedly merges every occurrence of
// the lowest-ranked adjacent pair until one symbol is left or no pair has a
// rank.
func (t *Tokenizer) bpe(s string) []string {
	word := byteSymbols(s)
	if len(word) < 2 {
		return word
	}

	for len(word) > 1 {
		best, bestRank := pair{}, math.MaxInt
		for i := range len(word) - 1 {
			p := pair{word[i], word[i+1]}
			if r, ok := t.ranks[p]; ok && r < bestRank {
				best, bestRank = p, r
			}
		}
		if bestRank == math.MaxInt {
			break
		}

		merged := make([]string, 0, len(word))
		for i := 0; i < len(word); {
			if i < len(word)-1 && word[i] == best.left && word[i+1] == best.right {
				merged = append(merged, best.left+best.right)
				i += 2
				continue
			}
			merged = append(merged, word[i])
			i++
		}
		word = merged
	}
	return word
}
