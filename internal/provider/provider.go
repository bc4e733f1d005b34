package provider

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SharePayload is the normalized shape returned by all adapters.
// Both fields are in the canonical unit (see package hashrate).
type SharePayload struct {
	Shares15m float64 `json:"shares_15m"`
	Shares1d  float64 `json:"shares_1d"`
}

// Add returns the field-wise sum of p and o.
func (p SharePayload) Add(o SharePayload) SharePayload {
	return SharePayload{Shares15m: p.Shares15m + o.Shares15m, Shares1d: p.Shares1d + o.Shares1d}
}

// Validate checks the payload invariant: both fields finite and non-negative.
func (p SharePayload) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"shares_15m", p.Shares15m}, {"shares_1d", p.Shares1d}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite", f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("%s is negative: %v", f.name, f.v)
		}
	}
	return nil
}

// Kind identifies a provider variant.
type Kind string

const (
	BtcPool    Kind = "btcpool"
	SpiderPool Kind = "spiderpool"
	Poolin     Kind = "poolin"
	HuobiPool  Kind = "huobipool"
	AntPool    Kind = "antpool"
)

// Kinds lists every known provider kind in a stable order.
func Kinds() []Kind {
	return []Kind{BtcPool, SpiderPool, Poolin, HuobiPool, AntPool}
}

// ParseKind parses a provider name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// UnmarshalText lets JSON and YAML configs carry a Kind as a plain string.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) String() string { return string(k) }

// AccountQuery is one configured account. The URL carries the provider
// specific identifiers and credentials.
type AccountQuery struct {
	URL      string `json:"url" yaml:"url"`
	Provider Kind   `json:"provider" yaml:"provider"`
	Group    string `json:"group" yaml:"group"`
	// Label names the account in reports; optional.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// Nominal is the expected capacity, e.g. "280T"; optional, reporting only.
	Nominal string `json:"nominal,omitempty" yaml:"nominal,omitempty"`
}

// Name returns Label, falling back to "provider@host/id" where id is a
// non-secret account identifier taken from the URL when one is present.
func (q AccountQuery) Name() string {
	if q.Label != "" {
		return q.Label
	}
	u, err := url.Parse(q.URL)
	if err != nil || u.Host == "" {
		return string(q.Provider)
	}
	name := string(q.Provider) + "@" + u.Host
	if id := accountID(u); id != "" {
		name += "/" + id
	}
	return name
}

// accountID returns the puid query parameter, the segment after "my" in a
// dashboard path, or the account segment of a ".../show/<coin>/<account>/..."
// path.
func accountID(u *url.URL) string {
	if puid := u.Query().Get("puid"); puid != "" {
		return puid
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, s := range segs {
		switch {
		case s == "my" && i+1 < len(segs):
			return segs[i+1]
		case s == "show" && i+2 < len(segs):
			return segs[i+2]
		}
	}
	return ""
}

// Adapter fetches one account from a provider and maps the response into
// a SharePayload.
//
//go:generate mockgen -package=aggregate_test -destination=../aggregate/mock_adapter_test.go -source=provider.go -exclude_interfaces=HTTPClient
type Adapter interface {
	Kind() Kind
	Fetch(ctx context.Context, q AccountQuery) (SharePayload, error)
}

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=poolin_test -destination=poolin/mock_http_client_test.go -source=provider.go -exclude_interfaces=Adapter
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry dispatches by provider kind.
type Registry map[Kind]Adapter

// NewRegistry indexes adapters by their Kind. A later adapter with the same
// Kind replaces an earlier one, which is how decorators are layered.
func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Kind()] = a
	}
	return r
}

// Lookup returns the adapter for k, or an *UnsupportedError.
func (r Registry) Lookup(k Kind) (Adapter, error) {
	if a, ok := r[k]; ok && a != nil {
		return a, nil
	}
	return nil, &UnsupportedError{Provider: k}
}

// Wrap replaces every adapter with wrap(adapter).
func (r Registry) Wrap(wrap func(Adapter) Adapter) Registry {
	out := make(Registry, len(r))
	for k, a := range r {
		out[k] = wrap(a)
	}
	return out
}

// Kinds returns the registered kinds, sorted.
func (r Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
