// Package aggregate runs the configured accounts through their adapters and
// accumulates per-group totals.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"poolwatch/internal/metrics"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/urlpattern"
)

// DefaultTimeout bounds a single account fetch.
const DefaultTimeout = 15 * time.Second

// AccountResult is the outcome of one account fetch. Payload is zero when Err
// is set.
type AccountResult struct {
	Query    provider.AccountQuery
	Payload  provider.SharePayload
	Err      error
	Duration time.Duration
}

// GroupTotal accumulates the payloads of one group.
type GroupTotal struct {
	Name     string
	Total    provider.SharePayload
	Accounts int
	Failed   int
}

// Result is everything a run produced, in declared order.
type Result struct {
	Accounts []AccountResult
	Groups   []GroupTotal
}

// Totals maps group name to its total.
func (r *Result) Totals() map[string]GroupTotal {
	out := make(map[string]GroupTotal, len(r.Groups))
	for _, g := range r.Groups {
		out[g.Name] = g
	}
	return out
}

// Failed counts failed accounts.
func (r *Result) Failed() int {
	n := 0
	for _, a := range r.Accounts {
		if a.Err != nil {
			n++
		}
	}
	return n
}

// Observer is notified as a run progresses. GroupDone fires each time a run
// of consecutive accounts of one group ends. A group listed in separate runs
// is reported again when its later run ends, carrying the merged total so far.
type Observer interface {
	AccountDone(AccountResult)
	GroupDone(GroupTotal)
}

// Aggregator dispatches account queries to adapters by provider kind.
type Aggregator struct {
	registry provider.Registry
	logger   *slog.Logger
	timeout  time.Duration
	observer Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithTimeout sets the per-account fetch timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithObserver sets an observer for streaming output.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.observer = o }
}

// New returns an Aggregator over registry.
func New(registry provider.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{registry: registry, logger: slog.Default(), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run fetches every query sequentially in declared order. A failing account is
// logged and recorded; it never stops the run or touches any total. A group
// ends when the next query names a different group.
func (a *Aggregator) Run(ctx context.Context, queries []provider.AccountQuery) *Result {
	res := &Result{Accounts: make([]AccountResult, 0, len(queries))}
	index := make(map[string]int)

	var cur *GroupTotal
	flush := func() {
		if cur == nil {
			return
		}
		g := *cur
		if i, ok := index[g.Name]; ok {
			// a group split across the list; merge into the first block
			prev := &res.Groups[i]
			prev.Total = prev.Total.Add(g.Total)
			prev.Accounts += g.Accounts
			prev.Failed += g.Failed
			g = *prev
		} else {
			index[g.Name] = len(res.Groups)
			res.Groups = append(res.Groups, g)
		}
		metrics.SetGroup(g.Name, g.Total, g.Failed)
		a.logger.Info("group done",
			"group", g.Name,
			"shares_15m", g.Total.Shares15m,
			"shares_1d", g.Total.Shares1d,
			"accounts", g.Accounts,
			"failed", g.Failed,
		)
		if a.observer != nil {
			a.observer.GroupDone(g)
		}
		cur = nil
	}

	for _, q := range queries {
		if cur != nil && cur.Name != q.Group {
			flush()
		}
		if cur == nil {
			cur = &GroupTotal{Name: q.Group}
		}

		ar := a.fetch(ctx, q)
		res.Accounts = append(res.Accounts, ar)

		cur.Accounts++
		if ar.Err != nil {
			cur.Failed++
		} else {
			cur.Total = cur.Total.Add(ar.Payload)
		}
		if a.observer != nil {
			a.observer.AccountDone(ar)
		}
	}
	flush()
	return res
}

func (a *Aggregator) fetch(ctx context.Context, q provider.AccountQuery) AccountResult {
	ar := AccountResult{Query: q}
	log := a.logger.With("provider", q.Provider, "group", q.Group, "account", q.Name())

	if err := ctx.Err(); err != nil {
		ar.Err = &provider.FetchError{
			Provider: q.Provider,
			URL:      urlpattern.Redact(q.URL),
			Err:      fmt.Errorf("run canceled: %w", err),
		}
		log.Warn("account skipped", "error", ar.Err)
		return ar
	}

	adapter, err := a.registry.Lookup(q.Provider)
	if err != nil {
		ar.Err = err
		log.Warn("account failed", "class", provider.Class(err), "error", err)
		metrics.ObserveFetch(q.Provider, provider.Class(err), 0)
		return ar
	}

	fctx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	p, err := adapter.Fetch(fctx, q)
	ar.Duration = time.Since(start)
	metrics.ObserveFetch(q.Provider, provider.Class(err), ar.Duration)

	if err != nil {
		ar.Err = err
		log.Warn("account failed", "class", provider.Class(err), "error", err, "duration", ar.Duration)
		return ar
	}
	ar.Payload = p
	metrics.SetAccount(q.Group, q.Name(), p)
	log.Debug("account done", "shares_15m", p.Shares15m, "shares_1d", p.Shares1d, "duration", ar.Duration)
	return ar
}
