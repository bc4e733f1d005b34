// Command poolprobe fetches a single account URL and prints what the adapter
// sees. It is meant for checking a new account before adding it to the list.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"poolwatch/internal/app"
	"poolwatch/internal/config"
	"poolwatch/internal/logging"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/antpool"
	"poolwatch/internal/provider/poolin"
	"poolwatch/internal/provider/spiderpool"
	"poolwatch/internal/provider/urlpattern"
)

type probeResult struct {
	Provider    provider.Kind           `json:"provider"`
	URL         string                  `json:"url"`
	Identifiers *urlpattern.Identifiers `json:"identifiers,omitempty"`
	Payload     *provider.SharePayload  `json:"payload,omitempty"`
	Observation *antpool.Observation    `json:"observation,omitempty"`
	Error       string                  `json:"error,omitempty"`
	ErrorClass  string                  `json:"error_class,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("poolprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath  string
		kindFlag string
		rawURL   string
	)
	fs.StringVar(&cfgPath, "config", "", "path to config file, .json or .yaml (optional)")
	fs.StringVar(&kindFlag, "provider", "", "provider kind: btcpool, spiderpool, poolin, huobipool or antpool")
	fs.StringVar(&rawURL, "url", "", "account URL to probe")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, stderr)

	kind, err := provider.ParseKind(kindFlag)
	if err != nil {
		logger.Error("bad -provider", "error", err)
		return 1
	}
	if rawURL == "" {
		logger.Error("-url is required")
		return 1
	}

	out := probeResult{Provider: kind, URL: urlpattern.Redact(rawURL)}
	code := 0
	if err := probe(ctx, cfg, kind, rawURL, &out, logger); err != nil {
		out.Error = err.Error()
		out.ErrorClass = provider.Class(err)
		code = 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		logger.Error("writing result", "error", err)
		return 1
	}
	return code
}

func probe(ctx context.Context, cfg config.Config, kind provider.Kind, rawURL string, out *probeResult, logger *slog.Logger) error {
	if err := config.CheckURL(kind, rawURL); err != nil {
		return err
	}
	switch kind {
	case provider.SpiderPool:
		ids, _ := spiderpool.Dashboard.Extract(rawURL)
		out.Identifiers = &ids
	case provider.Poolin:
		ids, _ := poolin.Dashboard.Extract(rawURL)
		ids.Token = redacted(ids.Token)
		out.Identifiers = &ids
	}

	reg, err := app.Adapters(cfg, app.HTTPClient(cfg), logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()

	if kind == provider.AntPool {
		obs, err := reg[provider.AntPool].(*antpool.Adapter).Probe(ctx, rawURL)
		if err != nil {
			return err
		}
		out.Observation = &obs
		return nil
	}

	a, err := reg.Lookup(kind)
	if err != nil {
		return err
	}
	p, err := a.Fetch(ctx, provider.AccountQuery{URL: rawURL, Provider: kind, Group: "probe"})
	if err != nil {
		return err
	}
	out.Payload = &p
	return nil
}

func redacted(s string) string {
	if s == "" {
		return ""
	}
	return "REDACTED"
}
