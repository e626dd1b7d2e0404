package pricing

// Compute returns the token cost of a request with the given form values.
func Compute(form map[string]any, rule Rule) int64 {
	if form == nil {
		form = map[string]any{}
	}
	switch rule.Type {
	case TypePer:
		return tokens(numberOrZero(rule.Tokens))
	case TypePerMulti:
		count := firstTruthy(form, "num_images", "max_images")
		if count == nil {
			return 0
		}
		return tokens(numberOrZero(rule.Tokens) * numberOrZero(count))
	case TypeSingleField:
		table, ok := asMap(rule.Tokens)
		if !ok {
			return 0
		}
		key, ok := keyString(form[rule.Field])
		if !ok {
			return 0
		}
		return tokens(numberOrZero(table[key]))
	case TypeMultiFields:
		return tokens(walkFields(rule.Tokens, form, 0))
	case TypeTwoFieldLookup:
		return tokens(twoFieldLookup(rule.Tokens, form))
	default:
		return 0
	}
}

func firstTruthy(form map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := form[k]; truthy(v) {
			return v
		}
	}
	return nil
}

// maxTreeDepth bounds walkFields against self-referencing rules decoded
// from YAML anchors.
const maxTreeDepth = 32

// walkFields descends a {field, values: {value: node}} tree until it reaches
// a node carrying tokens.
func walkFields(node any, form map[string]any, depth int) float64 {
	if depth > maxTreeDepth {
		return 0
	}
	n, ok := asMap(node)
	if !ok {
		return 0
	}
	if leaf, ok := n["tokens"]; ok && leaf != nil {
		return numberOrZero(leaf)
	}
	field := asString(n["field"])
	values, ok := asMap(n["values"])
	if field == "" || !ok {
		return 0
	}
	key, ok := keyString(form[field])
	if !ok {
		return 0
	}
	next, ok := asMap(values[key])
	if !ok {
		return 0
	}
	return walkFields(next, form, depth+1)
}

// twoFieldLookup supports a matrix form, prices[field1][field2], and a
// multiplier form, prices[field1] * field2.
func twoFieldLookup(def any, form map[string]any) float64 {
	s, ok := asMap(def)
	if !ok {
		return 0
	}
	v1, ok1 := form[asString(s["field1"])]
	v2, ok2 := form[asString(s["field2"])]
	// false is a legitimate selection; only absent or null fields stop here
	if !ok1 || v1 == nil || !ok2 || v2 == nil {
		return 0
	}
	prices, ok := asMap(s["prices"])
	if !ok {
		return 0
	}
	k1, ok := keyString(v1)
	if !ok {
		return 0
	}
	entry, ok := prices[k1]
	if !ok || entry == nil {
		return 0
	}
	if row, ok := asMap(entry); ok {
		k2, ok := keyString(v2)
		if !ok {
			return 0
		}
		return numberOrZero(row[k2])
	}
	multiplier, ok := number(entry)
	if !ok {
		return 0
	}
	per, ok := number(v2)
	if !ok {
		return 0
	}
	return per * multiplier
}
