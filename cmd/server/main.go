// server is the convocoach analytics HTTP service. It serves dashboard,
// skill, trend and comparison reports over JSON and exposes health and
// Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convocoach/internal/config"
	"convocoach/internal/di"
	"convocoach/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	addr := flag.String("addr", "", "listen address, overrides server.host and server.port")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("failed to load configuration", "error", err)
	}

	logger := logging.NewLoggerWithFormat(logging.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefaultLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *addr, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		syncLogger(logger)
		os.Exit(1)
	}
	syncLogger(logger)
}

// syncLogger flushes buffered entries when the logger supports it
func syncLogger(logger logging.Logger) {
	if s, ok := logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

func run(ctx context.Context, cfg *config.Config, addr string, logger logging.Logger) error {
	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger), di.WithVersion(version))
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}()

	if addr == "" {
		addr = cfg.Address()
	}
	srv := newHTTPServer(cfg, addr, container.Router.Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("convocoach listening", "addr", addr, "version", version, "probes", container.Health.ProbeNames())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// The parent context is already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // fresh context needed after cancellation
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newHTTPServer(cfg *config.Config, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
