package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexFloat is a wire field that a provider sends either as a JSON number or
// as a JSON string holding a number. It records which form arrived; Float
// performs the single coercion.
type FlexFloat struct {
	kind flexKind
	num  float64
	str  string
}

type flexKind uint8

const (
	flexAbsent flexKind = iota
	flexNumber
	flexString
)

// Number returns a FlexFloat holding a JSON number.
func Number(v float64) FlexFloat { return FlexFloat{kind: flexNumber, num: v} }

// String returns a FlexFloat holding a JSON string.
func String(s string) FlexFloat { return FlexFloat{kind: flexString, str: s} }

// UnmarshalJSON accepts a number, a string, or null. Any other JSON type is
// an error.
func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = FlexFloat{}
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = String(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("want number or string, got %s", truncate(b, 32))
	}
	v, err := n.Float64()
	if err != nil {
		return err
	}
	*f = Number(v)
	return nil
}

// MarshalJSON writes the value back in the form it arrived in.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	switch f.kind {
	case flexNumber:
		return json.Marshal(f.num)
	case flexString:
		return json.Marshal(f.str)
	}
	return []byte("null"), nil
}

// Present reports whether the field carried a value.
func (f FlexFloat) Present() bool { return f.kind != flexAbsent }

// Float coerces the value. An absent field is zero; a string must parse as a
// floating point number.
func (f FlexFloat) Float() (float64, error) {
	switch f.kind {
	case flexNumber:
		return f.num, nil
	case flexString:
		v, err := strconv.ParseFloat(strings.TrimSpace(f.str), 64)
		if err != nil {
			return 0, fmt.Errorf("string %q is not a number", f.str)
		}
		return v, nil
	}
	return 0, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
