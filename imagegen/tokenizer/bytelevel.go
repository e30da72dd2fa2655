// bytelevel.go - GPT-2 Byte-Level-Kodierung
//
// Enthält:
// - byteToRune / runeToByte: Bijektion zwischen Bytes und druckbaren Runen

package tokenizer

var (
	byteToRune [256]rune
	runeToByte = make(map[rune]byte, 256)
)

func init() {
	printable := func(b int) bool {
		return (b >= 33 && b <= 126) || (b >= 161 && b <= 172) || (b >= 174 && b <= 255)
	}
	n := 0
	for b := range 256 {
		if printable(b) {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = rune(256 + n)
			n++
		}
		runeToByte[byteToRune[b]] = byte(b)
	}
}

// byteSymbols maps each byte of s to its surrogate rune, one symbol per byte.
func byteSymbols(s string) []string {
	syms := make([]string, len(s))
	for i := range len(s) {
		syms[i] = string(byteToRune[s[i]])
	}
	return syms
}
