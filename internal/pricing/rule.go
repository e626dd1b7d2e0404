// Package pricing turns request form values and provider results into token
// costs. Every function here is total: malformed rules or missing inputs
// price at zero instead of failing, because by the time a cost is computed
// the upstream call has usually already been paid for.
package pricing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Rule variant names.
const (
	TypePer                = "per"
	TypePerMulti           = "perMulti"
	TypeSingleField        = "singleField"
	TypeMultiFields        = "multiFields"
	TypeTwoFieldLookup     = "twoFieldLookup"
	TypeDuration           = "duration"
	TypeDurationResolution = "durationResolution"
	TypeDurationSize       = "durationSize"
)

// Rule is a provider pricing rule as stored in apis.pricing. The shape of
// Tokens depends on Type: a number for per/perMulti, a value map for
// singleField, a field tree for multiFields, and a {field1, field2, prices}
// object for twoFieldLookup.
type Rule struct {
	Type   string `json:"type" yaml:"type"`
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`
	Tokens any    `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// ParseRule decodes a stored rule. Anything undecodable becomes the zero Rule,
// which prices at 0.
func ParseRule(raw []byte) Rule {
	var r Rule
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return r
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return Rule{}
	}
	return r
}

// keyString renders v the way lookup tables are keyed: numbers without a
// trailing ".0", booleans as "true"/"false". ok is false for values that
// cannot key a table.
func keyString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return t.String(), true
	default:
		if f, ok := number(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return "", false
	}
}

// number coerces v to a float. Strings must parse fully; booleans count as
// 1 and 0.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// truthy mirrors the "is this count set" check used for perMulti.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		f, ok := number(v)
		return ok && f != 0 && !math.IsNaN(f)
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// tokens converts a computed amount to a non-negative whole token count.
func tokens(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return int64(math.Round(f))
}

// numberOrZero is number() collapsed to 0 on failure.
func numberOrZero(v any) float64 {
	f, ok := number(v)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return f
}
