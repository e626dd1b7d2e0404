package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFromResponse(t *testing.T) {
	tests := []struct {
		name string
		rule string
		res  Result
		want int64
	}{
		{
			name: "perMulti counts urls",
			rule: `{"type":"perMulti","tokens":7}`,
			res:  Result{URLs: []string{"https://a/1.png", "https://a/2.png"}},
			want: 14,
		},
		{
			name: "duration from response",
			rule: `{"type":"duration","field":"video.duration","tokens":{"5":100,"10":180}}`,
			res:  Result{Response: map[string]any{"video": map[string]any{"duration": 10}}},
			want: 180,
		},
		{
			name: "duration falls back to input",
			rule: `{"type":"duration","tokens":{"5":100}}`,
			res:  Result{Input: map[string]any{"duration": "5"}},
			want: 100,
		},
		{
			name: "durationResolution",
			rule: `{"type":"durationResolution","tokens":{"rates":{"720p":20,"1080p":35}}}`,
			res:  Result{Input: map[string]any{"resolution": "1080p", "duration": 4}},
			want: 140,
		},
		{
			name: "durationSize",
			rule: `{"type":"durationSize","tokens":{"prices":{"1280x720":{"5":90}}}}`,
			res:  Result{Input: map[string]any{"size": "1280x720", "duration": 5}},
			want: 90,
		},
		{
			name: "per",
			rule: `{"type":"per","tokens":25}`,
			want: 25,
		},
		{
			name: "unknown type uses flat tokens",
			rule: `{"type":"other","tokens":9}`,
			want: 9,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeFromResponse(ParseRule([]byte(tc.rule)), tc.res))
		})
	}
}

func TestComputeFromResponseMalformed(t *testing.T) {
	rules := []string{
		`{"type":"duration","tokens":[1,2]}`,
		`{"type":"durationResolution","tokens":{"rates":"x"}}`,
		`{"type":"durationResolution","tokens":{"rates":{"720p":20}}}`,
		`{"type":"durationSize","tokens":{"prices":{"1280x720":7}}}`,
		`{"type":"other","tokens":{"nested":true}}`,
	}
	res := Result{
		Input:    map[string]any{"resolution": "720p", "size": "1280x720", "duration": "long"},
		Response: map[string]any{"duration": map[string]any{"weird": 1}},
	}
	for _, raw := range rules {
		r := ParseRule([]byte(raw))
		assert.NotPanics(t, func() {
			assert.Equal(t, int64(0), ComputeFromResponse(r, res), raw)
		})
	}
	assert.Equal(t, int64(0), ComputeFromResponse(Rule{}, Result{}))
}
