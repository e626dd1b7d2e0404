package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rule(t *testing.T, raw string) Rule {
	t.Helper()
	r := ParseRule([]byte(raw))
	if r.Type == "" {
		t.Fatalf("rule did not parse: %s", raw)
	}
	return r
}

func TestComputeVariants(t *testing.T) {
	tests := []struct {
		name string
		rule string
		form map[string]any
		want int64
	}{
		{"per", `{"type":"per","tokens":12}`, nil, 12},
		{"perMulti num_images", `{"type":"perMulti","tokens":5}`, map[string]any{"num_images": json.Number("3")}, 15},
		{"perMulti falls to max_images", `{"type":"perMulti","tokens":5}`, map[string]any{"num_images": 0, "max_images": 2}, 10},
		{"singleField hit", `{"type":"singleField","field":"quality","tokens":{"hd":40,"sd":20}}`, map[string]any{"quality": "hd"}, 40},
		{"singleField numeric key", `{"type":"singleField","field":"duration","tokens":{"5":50,"10":90}}`, map[string]any{"duration": 10.0}, 90},
		{
			"multiFields leaf",
			`{"type":"multiFields","tokens":{"field":"resolution","values":{"1080p":{"field":"audio","values":{"true":{"tokens":80},"false":{"tokens":60}}}}}}`,
			map[string]any{"resolution": "1080p", "audio": false},
			60,
		},
		{
			"twoFieldLookup matrix",
			`{"type":"twoFieldLookup","tokens":{"field1":"a","field2":"b","prices":{"a":{"x":10,"y":20}}}}`,
			map[string]any{"a": "a", "b": "x"},
			10,
		},
		{
			"twoFieldLookup multiplier",
			`{"type":"twoFieldLookup","tokens":{"field1":"a","field2":"n","prices":{"a":3}}}`,
			map[string]any{"a": "a", "n": 5},
			15,
		},
		{
			"twoFieldLookup false is present",
			`{"type":"twoFieldLookup","tokens":{"field1":"audio","field2":"n","prices":{"false":{"4":8}}}}`,
			map[string]any{"audio": false, "n": json.Number("4")},
			8,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compute(tc.form, rule(t, tc.rule)))
		})
	}
}

func TestComputeMissingInputsPriceAtZero(t *testing.T) {
	rules := []string{
		`{"type":"perMulti","tokens":5}`,
		`{"type":"singleField","field":"quality","tokens":{"hd":40}}`,
		`{"type":"multiFields","tokens":{"field":"resolution","values":{"1080p":{"tokens":80}}}}`,
		`{"type":"twoFieldLookup","tokens":{"field1":"a","field2":"b","prices":{"a":{"x":10}}}}`,
	}
	for _, raw := range rules {
		r := rule(t, raw)
		assert.NotPanics(t, func() {
			assert.Equal(t, int64(0), Compute(map[string]any{}, r), raw)
			assert.Equal(t, int64(0), Compute(nil, r), raw)
		})
	}
}

func TestComputeMalformedRules(t *testing.T) {
	form := map[string]any{"a": "a", "b": "z", "quality": "hd"}
	cases := []Rule{
		{},
		{Type: "bogus", Tokens: 10},
		{Type: TypePer, Tokens: "ten"},
		{Type: TypeSingleField, Field: "quality", Tokens: 5},
		{Type: TypeMultiFields, Tokens: []any{1, 2}},
		{Type: TypeTwoFieldLookup, Tokens: "nope"},
		ParseRule([]byte(`{not json`)),
	}
	for _, r := range cases {
		assert.NotPanics(t, func() {
			assert.Equal(t, int64(0), Compute(form, r))
		})
	}

	matrix := rule(t, `{"type":"twoFieldLookup","tokens":{"field1":"a","field2":"b","prices":{"a":{"x":10,"y":20}}}}`)
	assert.Equal(t, int64(0), Compute(form, matrix), "missing second-level key")

	mismatch := rule(t, `{"type":"twoFieldLookup","tokens":{"field1":"a","field2":"b","prices":{"a":3}}}`)
	assert.Equal(t, int64(0), Compute(form, mismatch), "non-numeric multiplier operand")
}

func TestComputeRoundsAndClamps(t *testing.T) {
	half := rule(t, `{"type":"twoFieldLookup","tokens":{"field1":"a","field2":"n","prices":{"a":0.5}}}`)
	assert.Equal(t, int64(3), Compute(map[string]any{"a": "a", "n": 5}, half))

	negative := rule(t, `{"type":"per","tokens":-4}`)
	assert.Equal(t, int64(0), Compute(nil, negative))
}

func TestComputeFromYAMLDecodedRule(t *testing.T) {
	r := Rule{
		Type:   TypeSingleField,
		Field:  "seconds",
		Tokens: map[string]any{"5": 30, "10": 55},
	}
	assert.Equal(t, int64(55), Compute(map[string]any{"seconds": 10}, r))
}
