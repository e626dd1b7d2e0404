package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"genstudio/internal/domain"
)

// StatusURL is the poll endpoint for a job: poll_url + task_id, plus the
// family's path suffix.
func (f *Family) StatusURL(cfg domain.ProviderConfig, taskID string) string {
	return cfg.PollURL + taskID + f.statusSuffix
}

// CheckStatus fetches the provider's current view of gen. Non-2xx answers
// come back as a *domain.ProviderError whose Raw is the {code, msg} envelope
// to store as polling diagnostics.
func (c *Client) CheckStatus(ctx context.Context, f *Family, gen *domain.Generation) (json.RawMessage, error) {
	if f.Synchronous || f.statusAuth == nil {
		return nil, &domain.ProviderError{APIType: f.APIType, Message: "family has no status endpoint"}
	}
	if gen.Model == nil {
		return nil, &domain.ProviderError{APIType: f.APIType, Message: "generation has no provider configuration"}
	}
	taskID := strings.TrimSpace(gen.TaskID)
	if taskID == "" {
		return nil, &domain.ProviderError{APIType: f.APIType, Message: "generation has no task id"}
	}
	cfg := gen.Model.API
	header, value, err := f.statusAuth(cfg, c.now())
	if err != nil {
		return nil, &domain.ProviderError{APIType: f.APIType, Message: err.Error()}
	}
	raw, err := c.do(ctx, call{
		apiType: f.APIType,
		stage:   "status",
		method:  http.MethodGet,
		url:     f.StatusURL(cfg, taskID),
		header:  header,
		value:   value,
	})
	if err != nil {
		if pe, ok := domain.AsProviderError(err); ok && pe.StatusCode > 0 {
			pe.Raw = statusEnvelope(pe.StatusCode)
			pe.Message = http.StatusText(pe.StatusCode)
		}
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, malformed(f.APIType, "status body is not json", raw)
	}
	return raw, nil
}
