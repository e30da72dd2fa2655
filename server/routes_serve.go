// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - startet den HTTP-Server bis zum Abbruch des Contexts

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mneves75/z-image-go/envconfig"
	"github.com/mneves75/z-image-go/logutil"
	"github.com/mneves75/z-image-go/version"
)

const shutdownTimeout = 10 * time.Second

// Serve answers requests on ln until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func Serve(ctx context.Context, ln net.Listener, cfg Config) error {
	ctx = logutil.Component(ctx, "server")
	log := logutil.FromContext(ctx)
	log.Info("server config", "env", envconfig.Values())

	s, err := New(cfg)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()

	srvr := &http.Server{
		Handler:           s.GenerateRoutes(ctx),
		ReadHeaderTimeout: 30 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version),
			"encoder", cfg.Encoder != nil)
		errc <- srvr.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srvr.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
