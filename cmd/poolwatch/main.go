package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poolwatch/internal/aggregate"
	"poolwatch/internal/app"
	"poolwatch/internal/config"
	"poolwatch/internal/logging"
	"poolwatch/internal/metrics"
	"poolwatch/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one report. Failed accounts do not change the exit code; only
// setup errors return 1.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("poolwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath   string
		accountsPath string
		format       string
		timeoutSec   int
		pushURL      string
	)
	fs.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config file, .json or .yaml (optional)")
	fs.StringVar(&accountsPath, "accounts", getenv("ACCOUNTS_FILE", ""), "path to account list, .json or .yaml (overrides config accounts)")
	fs.StringVar(&format, "format", "text", "report format: text or json")
	fs.IntVar(&timeoutSec, "timeout", 0, "per-account timeout seconds (0 = config value)")
	fs.StringVar(&pushURL, "push", "", "Pushgateway URL (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, stderr)

	if accountsPath != "" {
		accounts, err := config.LoadAccounts(accountsPath)
		if err != nil {
			logger.Error("loading accounts", "error", err)
			return 1
		}
		cfg.Accounts = accounts
	}
	if timeoutSec > 0 {
		cfg.HTTP.RequestTimeoutSec = timeoutSec
	}
	if pushURL != "" {
		cfg.Metrics.PushgatewayURL = pushURL
	}
	if format != "text" && format != "json" {
		logger.Error("unknown format", "format", format)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if len(cfg.Accounts) == 0 {
		logger.Error("no accounts configured; use -accounts or the accounts section of the config")
		return 1
	}

	reg, err := app.Adapters(cfg, app.HTTPClient(cfg), logger)
	if err != nil {
		logger.Error("building adapters", "error", err)
		return 1
	}
	reg = app.Decorate(reg, cfg, nil, logger)

	opts := []aggregate.Option{
		aggregate.WithLogger(logging.Component(logger, "aggregate")),
		aggregate.WithTimeout(cfg.RequestTimeout()),
	}
	var text *report.Text
	if format == "text" {
		text = report.NewText(stdout)
		opts = append(opts, aggregate.WithObserver(text))
	}

	res := aggregate.New(reg, opts...).Run(ctx, cfg.Accounts)

	if text != nil {
		text.Footer()
	} else if err := report.JSON(stdout, res); err != nil {
		logger.Error("writing report", "error", err)
		return 1
	}

	if cfg.Metrics.PushgatewayURL != "" {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := metrics.Push(pctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("pushing metrics", "error", err)
		}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Warn("run interrupted", "failed", res.Failed())
	}
	return 0
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
