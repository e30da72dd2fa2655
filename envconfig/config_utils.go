// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	ret := map[string]EnvVar{
		"ZIMAGE_DEBUG":           {"ZIMAGE_DEBUG", LogLevel(), "Show additional debug information (e.g. ZIMAGE_DEBUG=1)"},
		"ZIMAGE_HOST":            {"ZIMAGE_HOST", Host(), "IP Address for the zimage server (default 127.0.0.1:7860)"},
		"ZIMAGE_ORIGINS":         {"ZIMAGE_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"ZIMAGE_HOME":            {"ZIMAGE_HOME", Home(), "Root directory for downloaded and converted weights"},
		"ZIMAGE_WEIGHTS":         {"ZIMAGE_WEIGHTS", Weights(), "Directory of converted weights (default $ZIMAGE_HOME/converted)"},
		"ZIMAGE_RAW":             {"ZIMAGE_RAW", Raw(), "Directory of raw Hugging Face downloads (default $ZIMAGE_HOME/raw)"},
		"ZIMAGE_ALLOW_CPU":       {"ZIMAGE_ALLOW_CPU", AllowCPU(), "Permit CPU execution without --allow-cpu"},
		"ZIMAGE_PRETOKENIZE":     {"ZIMAGE_PRETOKENIZE", Pretokenize(), "Split prompts with the Qwen2 regex before BPE"},
		"ZIMAGE_NUM_THREADS":     {"ZIMAGE_NUM_THREADS", NumThreads(), "Maximum parallel tensor workers (default: all CPUs)"},
		"ZIMAGE_TOKENIZER_CACHE": {"ZIMAGE_TOKENIZER_CACHE", TokenizerCache(), "Number of BPE chunks kept in the tokenizer cache"},
		"HF_TOKEN":               {"HF_TOKEN", redact(HFToken()), "Hugging Face access token"},
		"HF_ENDPOINT":            {"HF_ENDPOINT", HFEndpoint(), "Hugging Face endpoint (default https://huggingface.co)"},

		// Proxy-Einstellungen
		"HTTP_PROXY":  {"HTTP_PROXY", String("HTTP_PROXY")(), "HTTP proxy"},
		"HTTPS_PROXY": {"HTTPS_PROXY", String("HTTPS_PROXY")(), "HTTPS proxy"},
		"NO_PROXY":    {"NO_PROXY", String("NO_PROXY")(), "No proxy"},
	}

	// Nicht-Windows: Case-sensitive Proxy-Variablen
	if runtime.GOOS != "windows" {
		ret["http_proxy"] = EnvVar{"http_proxy", String("http_proxy")(), "HTTP proxy"}
		ret["https_proxy"] = EnvVar{"https_proxy", String("https_proxy")(), "HTTPS proxy"}
		ret["no_proxy"] = EnvVar{"no_proxy", String("no_proxy")(), "No proxy"}
	}

	return ret
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
