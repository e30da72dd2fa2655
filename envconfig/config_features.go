// config_features.go - Feature-Flags und Laufzeit-Limits
//
// Dieses Modul enthaelt:
// - Feature-Flags (AllowCPU, Pretokenize)
// - Rechen-Limits (NumThreads, TokenizerCache)
// - Hugging-Face-Zugangsdaten
package envconfig

// =============================================================================
// Feature-Flags
// =============================================================================

var (
	// AllowCPU erlaubt CPU-Ausfuehrung ohne --allow-cpu
	AllowCPU = Bool("ZIMAGE_ALLOW_CPU")

	// Pretokenize aktiviert die Regex-Vorzerlegung des Tokenizers
	Pretokenize = Bool("ZIMAGE_PRETOKENIZE")
)

// =============================================================================
// Rechen-Limits
// =============================================================================

var (
	// NumThreads begrenzt die parallelen Tensor-Worker (0 = GOMAXPROCS)
	NumThreads = Uint("ZIMAGE_NUM_THREADS", 0)

	// TokenizerCache ist die Anzahl gecachter BPE-Chunks (0 = aus)
	TokenizerCache = Uint("ZIMAGE_TOKENIZER_CACHE", 0)
)

// =============================================================================
// Hugging Face
// =============================================================================

var (
	// HFToken ist der Zugriffstoken fuer geschuetzte Repositories
	HFToken = String("HF_TOKEN")

	// HFEndpoint ueberschreibt https://huggingface.co
	HFEndpoint = String("HF_ENDPOINT")
)
