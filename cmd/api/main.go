// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "tradedesk-ledger/internal"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Ledger stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves the ledger API until SIGINT/SIGTERM or a server failure, then
// drains HTTP before stopping the sweeper, notifier and store.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger := app.NewApplication()
	if err := ledger.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	log := ledger.Logger

	server := &http.Server{
		Addr:              ":" + ledger.Config.ServerPort,
		Handler:           ledger.HTTPHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Ledger API listening", "addr", server.Addr, "store", ledger.Config.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	ledger.Start()

	var failure error
	select {
	case <-ctx.Done():
		log.Info("Shutdown requested")
	case err := <-serveErr:
		failure = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		failure = errors.Join(failure, fmt.Errorf("http shutdown: %w", err))
	}
	if err := ledger.Shutdown(shutdownCtx); err != nil {
		failure = errors.Join(failure, fmt.Errorf("application shutdown: %w", err))
	}
	if failure == nil {
		log.Info("Ledger stopped")
	}
	return failure
}
