package provider

import (
	"errors"
	"fmt"

	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider/urlpattern"
)

// PatternMismatchError is returned when an account URL does not match the
// provider's template. No network I/O happens after it.
type PatternMismatchError = urlpattern.PatternMismatchError

// UnitError is returned for unit labels outside the conversion table when the
// strict unit policy is in effect.
type UnitError = hashrate.UnitError

// FetchError is a network or HTTP-layer failure, including timeouts, non-2xx
// responses and provider-reported request errors.
type FetchError struct {
	Provider   Kind
	URL        string // redacted
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s: status %d: %v", e.Provider, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Provider, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a response that does not match the expected schema, or a
// field whose value cannot be coerced.
type ParseError struct {
	Provider Kind
	Field    string // empty when the whole body is undecodable
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s parse %s: %v", e.Provider, e.Field, e.Err)
	}
	return fmt.Sprintf("%s parse response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedError is returned for provider kinds that have no working adapter.
type UnsupportedError struct {
	Provider Kind
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("provider %q is not supported", string(e.Provider))
}

// IsFetch reports whether err is or wraps a *FetchError.
func IsFetch(err error) bool {
	var e *FetchError
	return errors.As(err, &e)
}

// IsParse reports whether err is or wraps a *ParseError.
func IsParse(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

// IsPatternMismatch reports whether err is or wraps a *PatternMismatchError.
func IsPatternMismatch(err error) bool {
	var e *PatternMismatchError
	return errors.As(err, &e)
}

// IsUnit reports whether err is or wraps a *UnitError.
func IsUnit(err error) bool {
	var e *UnitError
	return errors.As(err, &e)
}

// IsUnsupported reports whether err is or wraps an *UnsupportedError.
func IsUnsupported(err error) bool {
	var e *UnsupportedError
	return errors.As(err, &e)
}

// Class names the error category, for logs and metric labels.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsFetch(err):
		return "fetch_error"
	case IsParse(err):
		return "parse_error"
	case IsPatternMismatch(err):
		return "pattern_mismatch"
	case IsUnit(err):
		return "unit_error"
	case IsUnsupported(err):
		return "unsupported"
	}
	return "error"
}
