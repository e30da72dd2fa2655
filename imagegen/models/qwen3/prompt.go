// Modul: prompt.go
// Beschreibung: Prompt-Formatierung und Encoding für den Qwen3 Text-Encoder.
// Enthält: ApplyChatTemplate, EncodePrompt.

package qwen3

import (
	"github.com/mneves75/z-image-go/imagegen/tensor"
	"github.com/mneves75/z-image-go/imagegen/tokenizer"
)

// ApplyChatTemplate wraps prompt in the Qwen3 chat template. With think set,
// an empty think block is appended.
func ApplyChatTemplate(prompt string, think bool) string {
	text := "<|im_start|>user\n" + prompt + "<|im_end|>\n<|im_start|>assistant\n"
	if think {
		text += "<think>\n\n</think>\n\n"
	}
	return text
}

// EncodePrompt tokenizes prompt, optionally wrapped in the chat template, and
// runs the encoder. It returns the hidden states and the token ids.
func (te *TextEncoder) EncodePrompt(tok *tokenizer.Tokenizer, prompt string, template bool) (*tensor.Array, []int32) {
	if template {
		prompt = ApplyChatTemplate(prompt, false)
	}
	ids := tok.Encode(prompt)
	return te.Forward(ids), ids
}
