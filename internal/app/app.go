// Package app wires configuration, storage and HTTP handling into the
// shorts service commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vidfriends/shorts/internal/config"
	"github.com/vidfriends/shorts/internal/handlers"
	"github.com/vidfriends/shorts/internal/httpserver"
	"github.com/vidfriends/shorts/internal/logging"
	"github.com/vidfriends/shorts/internal/middleware"
)

// Run bootstraps the shorts backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve or migrate")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openCache(ctx, cfg, logger)
	if err != nil {
		_ = backend.Close(ctx)
		return err
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, backend, store, logger)
	if err != nil {
		closeStore()
		_ = backend.Close(ctx)
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.AppPort, handler)

	logger.Info("starting http server", "port", cfg.AppPort, "backend", cfg.Backend, "cache", cfg.Cache.Kind)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	// Queued cleanup jobs still need the backend and cache, so they drain first.
	if err := cleanup(shutdownCtx); err != nil {
		logger.Error("dependency shutdown", "error", err)
	}
	closeStore()
	if err := backend.Close(shutdownCtx); err != nil {
		logger.Error("close backend", "error", err)
	}

	return runErr
}
