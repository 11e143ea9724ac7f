package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wbi/internal/chart"
	"wbi/internal/logging"
	"wbi/internal/server"
	"wbi/internal/store"
)

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", getenv("WBI_ADDR", ":8080"), "listen address")
	dbPath := fs.String("db", "", "cache database path or postgres:// DSN (empty disables caching)")
	verbose := fs.Bool("verbose", false, "log at debug level")
	fs.Parse(args)

	ctx := context.Background()
	logger := newLogger(*verbose)
	collector := newCollector()

	provider, err := newProvider(logger, collector)
	if err != nil {
		return err
	}
	defer provider.Close()
	st, err := openStore(*dbPath, collector)
	if err != nil {
		return err
	}
	defer st.Close()

	charts := chart.NewEngine(chart.DefaultConfig(), chart.WithMetrics(collector))
	handler := server.NewHandler(store.NewWriteThrough(provider, st, logger), charts, logger, collector)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "[SERVER_START] listening", logging.Fields{"addr": *addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, "[SERVER_ERROR] server failed", logging.Fields{}, err)
			return err
		}
		return nil
	case <-quit:
	}

	logger.Info(ctx, "[SERVER_SHUTDOWN] shutting down", logging.Fields{})
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SERVER_SHUTDOWN] forced shutdown", logging.Fields{}, err)
		return err
	}
	logger.Info(ctx, "[SERVER_SHUTDOWN] stopped", logging.Fields{})
	return nil
}
