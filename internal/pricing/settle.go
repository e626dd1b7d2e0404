package pricing

import "strings"

// Result is what a completed provider job reports, as far as pricing cares.
type Result struct {
	// URLs are the produced artifact URLs.
	URLs []string
	// Input is the originating request payload.
	Input map[string]any
	// Response is the decoded provider status response.
	Response map[string]any
}

// ComputeFromResponse prices a finished job from its result, for providers
// whose real cost depends on what was produced (count of outputs, video
// duration, resolution).
//
// Response-priced rule shapes:
//
//	duration:           {field: "duration", tokens: {"5": 100, "10": 180}}
//	durationResolution: {tokens: {durationField, resolutionField, rates: {"720p": 20}}}
//	durationSize:       {tokens: {durationField, sizeField, prices: {"1280x720": {"5": 100}}}}
func ComputeFromResponse(rule Rule, res Result) int64 {
	switch rule.Type {
	case TypePerMulti:
		return tokens(numberOrZero(rule.Tokens) * float64(len(res.URLs)))
	case TypeDuration:
		table, ok := asMap(rule.Tokens)
		if !ok {
			return 0
		}
		field := rule.Field
		if field == "" {
			field = "duration"
		}
		key, ok := keyString(res.lookup(field))
		if !ok {
			return 0
		}
		return tokens(numberOrZero(table[key]))
	case TypeDurationResolution:
		def, ok := asMap(rule.Tokens)
		if !ok {
			return 0
		}
		rates, ok := asMap(def["rates"])
		if !ok {
			return 0
		}
		resolution, ok := keyString(res.lookup(fieldOr(def, "resolutionField", "resolution")))
		if !ok {
			return 0
		}
		duration, ok := number(res.lookup(fieldOr(def, "durationField", "duration")))
		if !ok {
			return 0
		}
		return tokens(numberOrZero(rates[resolution]) * duration)
	case TypeDurationSize:
		def, ok := asMap(rule.Tokens)
		if !ok {
			return 0
		}
		prices, ok := asMap(def["prices"])
		if !ok {
			return 0
		}
		size, ok := keyString(res.lookup(fieldOr(def, "sizeField", "size")))
		if !ok {
			return 0
		}
		row, ok := asMap(prices[size])
		if !ok {
			return 0
		}
		duration, ok := keyString(res.lookup(fieldOr(def, "durationField", "duration")))
		if !ok {
			return 0
		}
		return tokens(numberOrZero(row[duration]))
	case TypePer:
		return tokens(numberOrZero(rule.Tokens))
	default:
		return tokens(numberOrZero(rule.Tokens))
	}
}

func fieldOr(def map[string]any, key, fallback string) string {
	if s := asString(def[key]); s != "" {
		return s
	}
	return fallback
}

// lookup resolves a dotted path against the response first and the request
// input second.
func (r Result) lookup(path string) any {
	if v, ok := dig(r.Response, path); ok {
		return v
	}
	if v, ok := dig(r.Input, path); ok {
		return v
	}
	return nil
}

func dig(m map[string]any, path string) (any, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}
