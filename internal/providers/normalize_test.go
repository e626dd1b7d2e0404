package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
)

func TestNormalizers(t *testing.T) {
	reg := testRegistry()
	cases := []struct {
		name    string
		apiType string
		raw     string
		status  domain.GenerationStatus
		urls    []string
		wantErr string
	}{
		{
			name:    "createTask success",
			apiType: domain.APITypeCreateTask,
			raw:     `{"code":200,"data":{"state":"success","resultJson":"{\"resultUrls\":[\"https://a/1.png\",\"https://a/2.png\"]}"}}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://a/1.png", "https://a/2.png"},
		},
		{
			name:    "createTask waiting",
			apiType: domain.APITypeCreateTask,
			raw:     `{"code":200,"data":{"state":"waiting"}}`,
			status:  domain.StatusPending,
		},
		{
			name:    "createTask success without urls still completes",
			apiType: domain.APITypeCreateTask,
			raw:     `{"code":200,"data":{"state":"success","resultJson":""}}`,
			status:  domain.StatusCompleted,
		},
		{
			name:    "createTask fail state",
			apiType: domain.APITypeCreateTask,
			raw:     `{"code":200,"msg":"ok","data":{"state":"fail","failMsg":"nsfw"}}`,
			status:  domain.StatusError,
			wantErr: "API error: 200 nsfw",
		},
		{
			name:    "createTask non-200 envelope",
			apiType: domain.APITypeCreateTask,
			raw:     `{"code":501,"msg":"upstream down"}`,
			status:  domain.StatusError,
			wantErr: "API error: 501 upstream down",
		},
		{
			name:    "customApi flag 1 with array",
			apiType: domain.APITypeCustomAPIGenerate,
			raw:     `{"code":200,"data":{"successFlag":1,"response":["https://c/1.mp4"]}}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://c/1.mp4"},
		},
		{
			name:    "customApi resultImageUrl",
			apiType: domain.APITypeCustomAPIGenerate,
			raw:     `{"code":200,"data":{"successFlag":1,"response":{"resultImageUrl":"https://c/2.png"}}}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://c/2.png"},
		},
		{
			name:    "customApi in progress",
			apiType: domain.APITypeCustomAPIGenerate,
			raw:     `{"code":200,"data":{"successFlag":0}}`,
			status:  domain.StatusPending,
		},
		{
			name:    "customApi flag 3",
			apiType: domain.APITypeCustomAPIGenerate,
			raw:     `{"code":200,"data":{"successFlag":3,"errorMessage":"boom"}}`,
			status:  domain.StatusError,
			wantErr: "boom",
		},
		{
			name:    "fal images",
			apiType: domain.APITypeFalGenerate,
			raw:     `{"images":[{"url":"https://f/1.png"}]}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://f/1.png"},
		},
		{
			name:    "fal queued",
			apiType: domain.APITypeFalGenerate,
			raw:     `{"status":"IN_PROGRESS"}`,
			status:  domain.StatusPending,
		},
		{
			name:    "prediction string output",
			apiType: domain.APITypePrediction,
			raw:     `{"status":"succeeded","output":"https://p/out.png"}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://p/out.png"},
		},
		{
			name:    "prediction list output",
			apiType: domain.APITypePredictionAlias,
			raw:     `{"status":"succeeded","output":["https://p/1.png","https://p/2.png"]}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://p/1.png", "https://p/2.png"},
		},
		{
			name:    "prediction processing",
			apiType: domain.APITypePrediction,
			raw:     `{"status":"processing"}`,
			status:  domain.StatusPending,
		},
		{
			name:    "prediction succeeded without output",
			apiType: domain.APITypePrediction,
			raw:     `{"status":"succeeded","output":null}`,
			status:  domain.StatusError,
			wantErr: "output missing",
		},
		{
			name:    "mergeVideos succeeded",
			apiType: domain.APITypeMergeVideos,
			raw:     `{"status":"succeeded","output":"https://m/merged.mp4"}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://m/merged.mp4"},
		},
		{
			name:    "kling succeed images",
			apiType: domain.APITypeKlingGenerate,
			raw:     `{"code":0,"data":{"task_status":"succeed","task_result":{"images":[{"index":0,"url":"https://k/1.png"}]}}}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://k/1.png"},
		},
		{
			name:    "kling succeed videos",
			apiType: domain.APITypeKlingGenerate,
			raw:     `{"code":0,"data":{"task_status":"succeed","task_result":{"videos":[{"id":"v","url":"https://k/1.mp4"}]}}}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://k/1.mp4"},
		},
		{
			name:    "kling failed",
			apiType: domain.APITypeKlingGenerate,
			raw:     `{"code":0,"data":{"task_status":"failed","task_status_msg":"risk control"}}`,
			status:  domain.StatusError,
			wantErr: "API error: risk control",
		},
		{
			name:    "kling processing",
			apiType: domain.APITypeKlingGenerate,
			raw:     `{"code":0,"data":{"task_status":"processing"}}`,
			status:  domain.StatusPending,
		},
		{
			name:    "kling succeed with empty result",
			apiType: domain.APITypeKlingGenerate,
			raw:     `{"code":0,"data":{"task_status":"succeed","task_result":{}}}`,
			status:  domain.StatusError,
			wantErr: "missing media URL",
		},
		{
			name:    "vidu success",
			apiType: domain.APITypeViduGenerate,
			raw:     `{"state":"success","creations":[{"id":"c1","url":"https://v/1.mp4","cover_url":"https://v/1.jpg"}]}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://v/1.mp4"},
		},
		{
			name:    "vidu failed",
			apiType: domain.APITypeViduGenerate,
			raw:     `{"state":"failed","err_code":"AuditSubmitIllegal"}`,
			status:  domain.StatusError,
			wantErr: "AuditSubmitIllegal",
		},
		{
			name:    "vidu queueing",
			apiType: domain.APITypeViduGenerate,
			raw:     `{"state":"queueing"}`,
			status:  domain.StatusPending,
		},
		{
			name:    "videoGenerations completed",
			apiType: domain.APITypeVideoGenerations,
			raw:     `{"id":"vid_1","status":"completed","video":{"url":"https://o/1.mp4"}}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://o/1.mp4"},
		},
		{
			name:    "videoGenerations in progress",
			apiType: domain.APITypeVideoGenerations,
			raw:     `{"id":"vid_1","status":"in_progress","progress":40}`,
			status:  domain.StatusPending,
		},
		{
			name:    "videoGenerations completed without video",
			apiType: domain.APITypeVideoGenerations,
			raw:     `{"id":"vid_1","status":"completed"}`,
			status:  domain.StatusError,
			wantErr: "video.url missing",
		},
		{
			name:    "instant",
			apiType: domain.APITypeImageInstant,
			raw:     `{"data":[{"url":"https://i/1.png"}]}`,
			status:  domain.StatusCompleted,
			urls:    []string{"https://i/1.png"},
		},
		{
			name:    "garbage body",
			apiType: domain.APITypeCreateTask,
			raw:     `not json`,
			status:  domain.StatusError,
			wantErr: "malformed response",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fam, ok := reg.Lookup(tc.apiType)
			require.True(t, ok)
			out, err := fam.Normalizer.Normalize(json.RawMessage(tc.raw))
			assert.Equal(t, tc.status, out.Status)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrProviderFailure)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.urls, out.URLs)
			if len(tc.urls) > 0 {
				assert.Equal(t, tc.urls[0], out.FileURL)
			} else {
				assert.Empty(t, out.FileURL)
			}
		})
	}
}

func TestFailedOutcomeKeepsProviderBody(t *testing.T) {
	raw := `{"code":0,"data":{"task_status":"failed","task_status_msg":"quota"}}`
	_, err := NormalizerFunc(normalizeKling).Normalize(json.RawMessage(raw))
	pe, ok := domain.AsProviderError(err)
	require.True(t, ok)
	assert.JSONEq(t, raw, string(pe.Raw))
}
