package providers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
)

func pendingGeneration(apiType, pollURL, taskID string) *domain.Generation {
	return &domain.Generation{
		ID:     "gen-1",
		Status: domain.StatusPending,
		TaskID: taskID,
		Model: &domain.ModelConfig{
			ID: "model-1",
			API: domain.ProviderConfig{
				APIType:    apiType,
				PollURL:    pollURL,
				Credential: domain.Credential{Key: "k"},
			},
		},
	}
}

func TestCheckStatusBuildsPollURL(t *testing.T) {
	srv, got := upstream(t, http.StatusOK, `{"status":"processing"}`)
	c := NewClient(Options{})
	fam, _ := DefaultRegistry(c).Lookup(domain.APITypePrediction)

	raw, err := c.CheckStatus(context.Background(), fam, pendingGeneration(domain.APITypePrediction, srv.URL+"/v1/predictions/", "abc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"processing"}`, string(raw))
	assert.Equal(t, "/v1/predictions/abc", got.path)
	assert.Equal(t, "Bearer k", got.header.Get("Authorization"))
}

func TestCheckStatusViduSuffix(t *testing.T) {
	srv, got := upstream(t, http.StatusOK, `{"state":"processing"}`)
	c := NewClient(Options{})
	fam, _ := DefaultRegistry(c).Lookup(domain.APITypeViduGenerate)

	_, err := c.CheckStatus(context.Background(), fam, pendingGeneration(domain.APITypeViduGenerate, srv.URL+"/ent/v2/tasks/", "vd-1"))
	require.NoError(t, err)
	assert.Equal(t, "/ent/v2/tasks/vd-1/creations", got.path)
	assert.Equal(t, "Token k", got.header.Get("Authorization"))
}

func TestCheckStatusNon2xxYieldsEnvelope(t *testing.T) {
	srv, _ := upstream(t, http.StatusNotFound, `{"detail":"no such task"}`)
	c := NewClient(Options{})
	fam, _ := DefaultRegistry(c).Lookup(domain.APITypeCreateTask)

	_, err := c.CheckStatus(context.Background(), fam, pendingGeneration(domain.APITypeCreateTask, srv.URL+"/record-info?taskId=", "t-1"))
	pe, ok := domain.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
	assert.Equal(t, "Not Found", pe.Message)
	assert.JSONEq(t, `{"code":404,"msg":"Not Found"}`, string(pe.Raw))
	assert.False(t, pe.Retryable)
}

func TestCheckStatusRejectsNonJSON(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `<html>maintenance</html>`)
	c := NewClient(Options{})
	fam, _ := DefaultRegistry(c).Lookup(domain.APITypeFalGenerate)

	_, err := c.CheckStatus(context.Background(), fam, pendingGeneration(domain.APITypeFalGenerate, srv.URL+"/requests/", "r1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status body is not json")
}

func TestCheckStatusPreconditions(t *testing.T) {
	c := NewClient(Options{})
	reg := DefaultRegistry(c)
	prediction, _ := reg.Lookup(domain.APITypePrediction)
	instant, _ := reg.Lookup(domain.APITypeImageInstant)

	_, err := c.CheckStatus(context.Background(), instant, pendingGeneration(domain.APITypeImageInstant, "http://unused/", "x"))
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	_, err = c.CheckStatus(context.Background(), prediction, pendingGeneration(domain.APITypePrediction, "http://unused/", " "))
	assert.ErrorContains(t, err, "no task id")

	gen := pendingGeneration(domain.APITypePrediction, "http://unused/", "x")
	gen.Model = nil
	_, err = c.CheckStatus(context.Background(), prediction, gen)
	assert.ErrorContains(t, err, "no provider configuration")
}

func TestKlingTokenRequiresBothKeys(t *testing.T) {
	_, err := KlingToken("ak", "", fixedNow)
	assert.Error(t, err)
	token, err := KlingToken("ak", "sk", fixedNow)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
