// Package hashrate converts provider hash-rate readings into the canonical unit.
//
// The canonical unit is PH/s. Providers report either in TH/s (labelled "T" or
// "TH") or already in the canonical magnitude with an empty or other label.
package hashrate

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Canonical is the label of the unit all payloads are normalized into.
const Canonical = "PH/s"

// scale maps a provider unit label to the factor that brings a value into the
// canonical unit. Lookups are exact-match.
var scale = map[string]float64{
	"T":  1.0 / 1024,
	"TH": 1.0 / 1024,
	"P":  1,
	"PH": 1,
	"":   1,
}

// Lookup returns the scale factor for unit and whether the label is known.
// Unknown labels report a factor of 1.
func Lookup(unit string) (float64, bool) {
	f, ok := scale[unit]
	if !ok {
		return 1, false
	}
	return f, true
}

// Normalize converts value expressed in unit into the canonical unit.
// Labels missing from the table pass through unchanged.
func Normalize(value float64, unit string) float64 {
	f, _ := Lookup(unit)
	return value * f
}

// Policy decides what a Normalizer does with unrecognized unit labels.
type Policy string

const (
	// Passthrough logs the label once and keeps the value unchanged.
	Passthrough Policy = "passthrough"
	// Strict rejects the value with a *UnitError.
	Strict Policy = "strict"
)

// ParsePolicy parses a policy name; the empty string selects Passthrough.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Passthrough:
		return Passthrough, nil
	case Strict:
		return Strict, nil
	}
	return "", fmt.Errorf("unknown unit policy %q", s)
}

// UnitError reports a unit label that is not in the conversion table.
type UnitError struct {
	Unit string
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unrecognized hash rate unit %q", e.Unit)
}

// Normalizer applies Normalize with an explicit policy for unknown labels.
// The zero value uses Passthrough and the default slog logger.
type Normalizer struct {
	Policy Policy
	Logger *slog.Logger

	warned sync.Map // unit label -> struct{}
}

// NewNormalizer returns a Normalizer using policy and logger.
func NewNormalizer(policy Policy, logger *slog.Logger) *Normalizer {
	return &Normalizer{Policy: policy, Logger: logger}
}

// Convert normalizes value. Under Strict an unknown unit is an error; under
// Passthrough it is logged at warn level the first time it is seen.
func (n *Normalizer) Convert(value float64, unit string) (float64, error) {
	f, ok := Lookup(unit)
	if ok {
		return value * f, nil
	}
	if n != nil && n.Policy == Strict {
		return 0, &UnitError{Unit: unit}
	}
	if n != nil {
		if _, seen := n.warned.LoadOrStore(unit, struct{}{}); !seen {
			n.logger().Warn("unrecognized hash rate unit, value kept as is", "unit", unit)
		}
	}
	return value, nil
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// ParseQuantity parses a capacity such as "280T", "3.5P" or "0.5 PH" into the
// canonical unit. Suffixes "/s" and "H/s" are accepted. A bare number is taken
// as already canonical.
func ParseQuantity(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	q := strings.TrimSuffix(raw, "/s")
	i := len(q)
	for i > 0 {
		c := q[i-1]
		if (c >= '0' && c <= '9') || c == '.' {
			break
		}
		i--
	}
	num := strings.TrimSpace(q[:i])
	unit := strings.ToUpper(strings.TrimSpace(q[i:]))
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("parse quantity %q: negative", raw)
	}
	f, ok := Lookup(unit)
	if !ok {
		return 0, &UnitError{Unit: unit}
	}
	return v * f, nil
}
