package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"poolwatch/internal/provider/urlpattern"
)

// maxBody caps how much of a provider response is read.
const maxBody = 4 << 20

// Request describes one GET against a provider API.
type Request struct {
	Provider Kind
	URL      string
	// Bearer, when set, is sent as an Authorization: Bearer header.
	Bearer string
}

// GetJSON performs req and decodes the JSON body into dst. Transport
// failures, timeouts and non-2xx statuses become *FetchError; a body that is
// not valid JSON for dst becomes *ParseError.
func GetJSON(ctx context.Context, client HTTPClient, req Request, dst any) error {
	redacted := urlpattern.Redact(req.URL)
	if client == nil {
		client = http.DefaultClient
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return &FetchError{Provider: req.Provider, URL: redacted, Err: fmt.Errorf("creating request: %w", err)}
	}
	hreq.Header.Set("Accept", "application/json")
	if req.Bearer != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}

	res, err := client.Do(hreq)
	if err != nil {
		// http.Client wraps the URL into its error; strip it to keep tokens out.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return &FetchError{Provider: req.Provider, URL: redacted, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &FetchError{
			Provider:   req.Provider,
			URL:        redacted,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("unexpected status: %q", string(b)),
		}
	}

	dec := json.NewDecoder(io.LimitReader(res.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &FetchError{Provider: req.Provider, URL: redacted, Err: fmt.Errorf("reading body: %w", ctxErr)}
		}
		return &ParseError{Provider: req.Provider, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// CheckURL verifies that rawURL is an absolute http(s) URL. Adapters that GET
// the configured URL as-is use it in place of a template.
func CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &PatternMismatchError{
			Pattern: "http(s)://{host}/...",
			URL:     urlpattern.Redact(rawURL),
			Reason:  "want an absolute http or https url",
		}
	}
	return nil
}

// Endpoint adds params to the query of the API base URL, keeping any query
// the base already carries. A param of the same name replaces the base's.
func Endpoint(kind Kind, base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", &FetchError{Provider: kind, URL: urlpattern.Redact(base), Err: fmt.Errorf("bad base url: %w", err)}
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Payload builds a SharePayload and enforces its invariant.
func Payload(kind Kind, shares15m, shares1d float64) (SharePayload, error) {
	p := SharePayload{Shares15m: shares15m, Shares1d: shares1d}
	if err := p.Validate(); err != nil {
		return SharePayload{}, &ParseError{Provider: kind, Err: err}
	}
	return p, nil
}
