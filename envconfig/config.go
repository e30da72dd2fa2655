// config.go - Haupt-Konfigurationsfunktionen fuer zimage
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host des HTTP-Servers zurueck (ZIMAGE_HOST)
// - AllowedOrigins: Gibt erlaubte CORS-Origins zurueck (ZIMAGE_ORIGINS)
// - Home: Wurzel fuer Caches und Gewichte (ZIMAGE_HOME)
// - Weights/Raw: Verzeichnisse fuer konvertierte und rohe Gewichte
// - LogLevel: Gibt Log-Level zurueck (ZIMAGE_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Feature-Flags und Laufzeit-Limits
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via ZIMAGE_HOST
// Default: http://127.0.0.1:7860
func Host() *url.URL {
	defaultPort := "7860"

	s := strings.TrimSpace(Var("ZIMAGE_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via ZIMAGE_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("ZIMAGE_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Home gibt das Wurzelverzeichnis fuer Gewichte zurueck
// Konfigurierbar via ZIMAGE_HOME
// Default: $HOME/.cache/z-image-go
func Home() string {
	if s := Var("ZIMAGE_HOME"); s != "" {
		return ExpandHome(s)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".cache", "z-image-go")
}

// Weights gibt das Verzeichnis der konvertierten Gewichte zurueck
// Konfigurierbar via ZIMAGE_WEIGHTS
// Default: $ZIMAGE_HOME/converted
func Weights() string {
	if s := Var("ZIMAGE_WEIGHTS"); s != "" {
		return ExpandHome(s)
	}
	return filepath.Join(Home(), "converted")
}

// Raw gibt das Download-Verzeichnis fuer rohe Hugging-Face-Dateien zurueck
// Konfigurierbar via ZIMAGE_RAW
// Default: $ZIMAGE_HOME/raw
func Raw() string {
	if s := Var("ZIMAGE_RAW"); s != "" {
		return ExpandHome(s)
	}
	return filepath.Join(Home(), "raw")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via ZIMAGE_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("ZIMAGE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// ExpandHome ersetzt ein fuehrendes ~ durch das Home-Verzeichnis
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
