// Package server - HTTP-Oberfläche für Tokenizer, Encoder, Scheduler und Generator
// Beinhaltet: Server-Struct, Laden der Modelle, Router-Registrierung
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/imagegen"
	"github.com/mneves75/z-image-go/imagegen/models/qwen3"
	"github.com/mneves75/z-image-go/imagegen/models/zimage"
	"github.com/mneves75/z-image-go/imagegen/tokenizer"
	"github.com/mneves75/z-image-go/logutil"
	"github.com/mneves75/z-image-go/version"
)

var mode string = gin.DebugMode

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// Config holds the components a Server serves. Tokenizer and Generator are
// required; Encoder may be nil, in which case /api/encode reports the
// pipeline as unavailable.
type Config struct {
	Tokenizer *tokenizer.Tokenizer
	Encoder   *qwen3.TextEncoder
	Scheduler zimage.SchedulerConfig
	Generator imagegen.ImageGenerator

	// OutputDir receives images written by /api/generate.
	OutputDir string
}

// Server answers the HTTP API. Its components are loaded once and only read
// afterwards.
type Server struct {
	addr net.Addr
	cfg  Config
}

// New returns a Server for cfg.
func New(cfg Config) (*Server, error) {
	if cfg.Tokenizer == nil {
		return nil, errors.New("server: tokenizer is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("server: generator is required")
	}
	if cfg.Scheduler.NumTrainTimesteps == 0 {
		cfg.Scheduler = zimage.DefaultSchedulerConfig()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = imagegen.DefaultOutdir
	}
	return &Server{cfg: cfg}, nil
}

// Load builds a Config from a converted weights directory. A missing text
// encoder or scheduler config is logged and tolerated; a missing tokenizer
// is an error.
func Load(ctx context.Context, weightsDir, outputDir string, opts ...tokenizer.Option) (Config, error) {
	ctx = logutil.Component(ctx, "server")
	log := logutil.FromContext(ctx)

	tok, err := tokenizer.Load(weightsDir, opts...)
	if err != nil {
		return Config{}, fmt.Errorf("load tokenizer: %w", err)
	}

	cfg := Config{
		Tokenizer: tok,
		Scheduler: zimage.DefaultSchedulerConfig(),
		Generator: imagegen.NewVerifiedGenerator(weightsDir),
		OutputDir: outputDir,
	}

	enc, err := qwen3.Load(ctx, filepath.Join(weightsDir, "text_encoder"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("text encoder not found, /api/encode disabled", "dir", weightsDir)
	case err != nil:
		return Config{}, err
	default:
		cfg.Encoder = enc
	}

	sched, err := zimage.LoadSchedulerConfig(filepath.Join(weightsDir, "scheduler", "scheduler_config.json"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("scheduler config not found, using defaults")
	case err != nil:
		return Config{}, err
	default:
		cfg.Scheduler = *sched
	}

	return cfg, nil
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes(ctx context.Context) http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		requestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		gin.Recovery(),
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
		requestLogger(logutil.FromContext(ctx)),
	)

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "zimage is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "zimage is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	r.POST("/api/tokenize", s.TokenizeHandler)
	r.POST("/api/encode", s.EncodeHandler)
	r.POST("/api/schedule", s.ScheduleHandler)
	r.POST("/api/generate", s.GenerateHandler)

	return r
}
