// Package urlpattern matches human-facing dashboard URLs against declared
// templates and extracts the identifiers embedded in them.
//
// A template is written as a URL in which the host, any path segment, and any
// query value may be a placeholder:
//
//	https://www.spiderpool.com/coin/show/btc/{account}/detail.html
//	https://{host}/my/{puid}/btc/miners?read_token={token}&status=ACTIVE
//
// Query parameters are matched by name regardless of order; parameters that
// the template does not mention are ignored.
package urlpattern

import (
	"fmt"
	"net/url"
	"strings"
)

// Field names a placeholder and the characters it accepts.
type Field string

const (
	// FieldHost accepts any non-empty host (with optional port).
	FieldHost Field = "host"
	// FieldAccount accepts ASCII letters and digits; extracted lowercased.
	FieldAccount Field = "account"
	// FieldPUID accepts decimal digits.
	FieldPUID Field = "puid"
	// FieldToken accepts ASCII letters, digits and underscore.
	FieldToken Field = "token"
)

// Identifiers are the values recovered from a matching URL. Fields the
// template does not declare are left empty.
type Identifiers struct {
	Host    string `json:"host,omitempty"`
	Account string `json:"account,omitempty"`
	ID      string `json:"id,omitempty"`
	Token   string `json:"token,omitempty"`
}

// PatternMismatchError reports a URL that does not conform to a template.
type PatternMismatchError struct {
	Pattern string
	URL     string // redacted
	Reason  string
}

func (e *PatternMismatchError) Error() string {
	return fmt.Sprintf("url %s does not match %s: %s", e.URL, e.Pattern, e.Reason)
}

type part struct {
	literal string
	field   Field
}

type queryPart struct {
	key string
	part
}

// Template is a compiled URL template. It is safe for concurrent use.
type Template struct {
	pattern string
	scheme  string
	host    part
	path    []part
	query   []queryPart
}

// Compile parses pattern into a Template.
func Compile(pattern string) (*Template, error) {
	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("pattern %q: missing scheme", pattern)
	}
	rest, rawQuery, _ := strings.Cut(rest, "?")
	host, path, _ := strings.Cut(rest, "/")
	if host == "" {
		return nil, fmt.Errorf("pattern %q: missing host", pattern)
	}

	t := &Template{pattern: pattern, scheme: scheme}
	var err error
	if t.host, err = parsePart(host); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	if t.host.field != "" && t.host.field != FieldHost {
		return nil, fmt.Errorf("pattern %q: host placeholder must be {host}", pattern)
	}

	for _, seg := range strings.Split(path, "/") {
		p, err := parsePart(seg)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		t.path = append(t.path, p)
	}

	if rawQuery != "" {
		for _, kv := range strings.Split(rawQuery, "&") {
			k, v, _ := strings.Cut(kv, "=")
			if k == "" {
				return nil, fmt.Errorf("pattern %q: empty query key", pattern)
			}
			p, err := parsePart(v)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pattern, err)
			}
			t.query = append(t.query, queryPart{key: k, part: p})
		}
	}
	return t, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// package-level template declarations.
func MustCompile(pattern string) *Template {
	t, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

func parsePart(s string) (part, error) {
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		if strings.ContainsAny(s, "{}") {
			return part{}, fmt.Errorf("malformed placeholder %q", s)
		}
		return part{literal: s}, nil
	}
	f := Field(s[1 : len(s)-1])
	switch f {
	case FieldHost, FieldAccount, FieldPUID, FieldToken:
		return part{field: f}, nil
	}
	return part{}, fmt.Errorf("unknown placeholder %q", s)
}

// String returns the pattern the template was compiled from.
func (t *Template) String() string { return t.pattern }

// Extract matches rawURL against the template. On success it returns the
// identifiers bound by the placeholders; otherwise a *PatternMismatchError.
func (t *Template) Extract(rawURL string) (Identifiers, error) {
	var ids Identifiers
	u, err := url.Parse(rawURL)
	if err != nil {
		return ids, t.mismatch(rawURL, "not a valid url")
	}
	if u.Scheme != t.scheme {
		return ids, t.mismatch(rawURL, fmt.Sprintf("scheme %q, want %q", u.Scheme, t.scheme))
	}
	if err := t.bind(&ids, t.host, u.Host); err != nil {
		return ids, t.mismatch(rawURL, "host: "+err.Error())
	}

	segs := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segs) != len(t.path) {
		return ids, t.mismatch(rawURL, fmt.Sprintf("path has %d segments, want %d", len(segs), len(t.path)))
	}
	for i, p := range t.path {
		if err := t.bind(&ids, p, segs[i]); err != nil {
			return ids, t.mismatch(rawURL, fmt.Sprintf("path segment %d: %s", i+1, err))
		}
	}

	q := u.Query()
	for _, qp := range t.query {
		vals, ok := q[qp.key]
		if !ok {
			return ids, t.mismatch(rawURL, fmt.Sprintf("missing query parameter %q", qp.key))
		}
		if len(vals) != 1 {
			return ids, t.mismatch(rawURL, fmt.Sprintf("query parameter %q repeated", qp.key))
		}
		if err := t.bind(&ids, qp.part, vals[0]); err != nil {
			return ids, t.mismatch(rawURL, fmt.Sprintf("query parameter %q: %s", qp.key, err))
		}
	}
	return ids, nil
}

func (t *Template) bind(ids *Identifiers, p part, got string) error {
	if p.field == "" {
		if got != p.literal {
			return fmt.Errorf("%q, want %q", got, p.literal)
		}
		return nil
	}
	if got == "" {
		return fmt.Errorf("empty {%s}", p.field)
	}
	switch p.field {
	case FieldHost:
		ids.Host = got
	case FieldAccount:
		if !allOf(got, isAlnum) {
			return fmt.Errorf("{account} %q must be letters and digits", got)
		}
		ids.Account = strings.ToLower(got)
	case FieldPUID:
		if !allOf(got, isDigit) {
			return fmt.Errorf("{puid} %q must be digits", got)
		}
		ids.ID = got
	case FieldToken:
		if !allOf(got, func(c byte) bool { return isAlnum(c) || c == '_' }) {
			return fmt.Errorf("{token} has invalid characters")
		}
		ids.Token = got
	}
	return nil
}

func (t *Template) mismatch(rawURL, reason string) *PatternMismatchError {
	return &PatternMismatchError{Pattern: t.pattern, URL: Redact(rawURL), Reason: reason}
}

func allOf(s string, pred func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !pred(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Redact returns rawURL with every query value and any userinfo password
// replaced, so that credentials do not end up in logs or error messages.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			q[k] = []string{"REDACTED"}
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
