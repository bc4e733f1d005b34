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

	"poolwatch/internal/aggregate"
	"poolwatch/internal/app"
	"poolwatch/internal/config"
	"poolwatch/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(logger)

	if path := os.Getenv("ACCOUNTS_FILE"); path != "" {
		accounts, err := config.LoadAccounts(path)
		if err != nil {
			logger.Error("loading accounts", "error", err)
			os.Exit(1)
		}
		cfg.Accounts = accounts
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.Accounts) == 0 {
		logger.Warn("no accounts configured; reports will be empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg.Cache)
	if err != nil {
		logger.Error("opening cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing cache", "error", err)
		}
	}()

	reg, err := app.Adapters(cfg, app.HTTPClient(cfg), logger)
	if err != nil {
		logger.Error("building adapters", "error", err)
		os.Exit(1)
	}
	reg = app.Decorate(reg, cfg, store, logger)

	s := &server{
		agg: aggregate.New(reg,
			aggregate.WithLogger(logging.Component(logger, "aggregate")),
			aggregate.WithTimeout(cfg.RequestTimeout()),
		),
		registry: reg,
		accounts: cfg.Accounts,
		timeout:  time.Duration(cfg.Server.ReportTimeoutSec) * time.Second,
		logger:   logging.Component(logger, "server"),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(s),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout(s.timeout),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "accounts", len(cfg.Accounts), "cache", cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// writeTimeout leaves room to encode the response after a report run. An
// unbounded report gets no write deadline.
func writeTimeout(report time.Duration) time.Duration {
	if report <= 0 {
		return 0
	}
	return report + 10*time.Second
}
