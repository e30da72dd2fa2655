// preview.go - Inline-Vorschau im Terminal.
//
// Dieses Modul enthaelt:
// - Terminal-Image-Display (iTerm2, Kitty, WezTerm, Ghostty)
// - Erkennung, ob stdout ein Terminal ist

package imagegen

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// DisplayImage renders the PNG at path inline when w is a terminal that
// supports an image protocol. It reports whether anything was written.
func DisplayImage(w io.Writer, path string) bool {
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}

	termProgram := os.Getenv("TERM_PROGRAM")
	kitty := os.Getenv("KITTY_WINDOW_ID") != "" || os.Getenv("GHOSTTY_RESOURCES_DIR") != "" || termProgram == "ghostty"
	iterm := termProgram == "iTerm.app" || termProgram == "WezTerm" || os.Getenv("WEZTERM_PANE") != ""
	if !kitty && !iterm {
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	if iterm {
		fmt.Fprintf(w, "\033]1337;File=inline=1;preserveAspectRatio=1:%s\a\n", encoded)
		return true
	}

	// Kitty graphics protocol, sent in 4 KiB chunks.
	const chunkSize = 4096
	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		more := 1
		if end >= len(encoded) {
			more = 0
		}
		if i == 0 {
			fmt.Fprintf(w, "\033_Ga=T,f=100,m=%d;%s\033\\", more, encoded[i:end])
		} else {
			fmt.Fprintf(w, "\033_Gm=%d;%s\033\\", more, encoded[i:end])
		}
	}
	fmt.Fprintln(w)
	return true
}
