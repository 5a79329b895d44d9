package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownGrace caps how long in-flight requests get to finish once a
// shutdown begins. Synchronous scans are the longest requests served here,
// so the grace period has to cover a full detection pass.
const shutdownGrace = 10 * time.Second

// startHTTPServer serves the API until SIGINT/SIGTERM or a listener failure,
// then drains in-flight requests and releases the app's resources.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: router,
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	listenErrCh := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
		}
	}()

	var listenErr error
	select {
	case sig := <-signalCh:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	case listenErr = <-listenErrCh:
		app.logger.Error("server listener failed", "error", listenErr)
	case <-ctx.Done():
		app.logger.Info("server context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		app.cleanup()
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.cleanup()
	app.logger.Info("server shutdown complete")

	if listenErr != nil {
		return fmt.Errorf("server failed: %w", listenErr)
	}
	return nil
}
