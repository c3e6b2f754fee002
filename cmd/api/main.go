// Command api serves the patient chat, therapist and booking APIs.
package main

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

	"github.com/joho/godotenv"

	"github.com/wolfman30/therapymatch-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const shutdownGrace = 30 * time.Second

func main() {
	envErr := godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file loaded; using process environment", "error", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	logger.Info("starting therapymatch api",
		"env", cfg.Env,
		"port", cfg.Port,
		"orchestration_mode", cfg.OrchestrationMode,
	)

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer app.Close()

	srv := newServer(cfg, app.Handler)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return serve(ctx, srv, ln, logger, shutdownGrace)
}

// serve blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests for up to grace.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *logging.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "grace", grace.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newServer builds the HTTP server. WriteTimeout stays above the LLM budget so
// a chat turn that walks the whole provider chain can still answer.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	write := 15 * time.Second
	if budget := 2*cfg.LLMTimeout + 5*time.Second; budget > write {
		write = budget
	}
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       60 * time.Second,
	}
}
