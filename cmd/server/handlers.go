package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"poolwatch/internal/aggregate"
	"poolwatch/internal/provider"
	"poolwatch/internal/report"
)

type server struct {
	agg      *aggregate.Aggregator
	registry provider.Registry
	accounts []provider.AccountQuery
	timeout  time.Duration
	logger   *slog.Logger

	runs singleflight.Group
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverPanic(s.logger))
	r.Use(requestMetrics)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(readOnlyCORS, compress)
		r.Get("/providers", s.handleProviders)
		r.Get("/report", s.handleReport)
		r.Get("/report.txt", s.handleReportText)
	})
	return r
}

func (s *server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]provider.Kind{"providers": s.registry.Kinds()})
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.report(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.NewDocument(res))
}

func (s *server) handleReportText(w http.ResponseWriter, r *http.Request) {
	res, ok := s.report(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	report.Render(w, res)
}

// report runs the aggregator for the accounts selected by the optional group
// query parameter. Concurrent requests for the same selection share one run.
func (s *server) report(w http.ResponseWriter, r *http.Request) (*aggregate.Result, bool) {
	group := strings.TrimSpace(r.URL.Query().Get("group"))
	queries := s.selectGroup(group)
	if group != "" && len(queries) == 0 {
		http.Error(w, "unknown group", http.StatusNotFound)
		return nil, false
	}

	ch := s.runs.DoChan("report:"+group, func() (any, error) {
		ctx := context.WithoutCancel(r.Context())
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		res := s.agg.Run(ctx, queries)
		s.logger.Info("report complete", "group", group, "accounts", len(res.Accounts), "failed", res.Failed())
		return res, nil
	})
	select {
	case <-r.Context().Done():
		http.Error(w, "request canceled", http.StatusServiceUnavailable)
		return nil, false
	case out := <-ch:
		return out.Val.(*aggregate.Result), true
	}
}

func (s *server) selectGroup(group string) []provider.AccountQuery {
	if group == "" {
		return s.accounts
	}
	var out []provider.AccountQuery
	for _, q := range s.accounts {
		if q.Group == group {
			out = append(out, q)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
