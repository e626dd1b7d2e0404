// Package providers implements the per-family adapters for upstream
// generation APIs: request shaping and auth for job creation, status polling,
// and normalization of each family's completion payload.
package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"genstudio/internal/domain"
	"genstudio/internal/domain/jsoncfg"
	"genstudio/internal/infra"
)

// Options configures the shared provider HTTP client.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
	Metrics    *infra.Metrics
	// Now is the clock used for signed credentials; defaults to time.Now.
	Now func() time.Time
}

// Client performs provider HTTP calls and converts failures into
// *domain.ProviderError.
type Client struct {
	http    *resty.Client
	logger  *infra.Logger
	metrics *infra.Metrics
	now     func() time.Time
}

// NewClient constructs a client with injected transport and logger.
func NewClient(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rc.SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{http: rc, logger: logger, metrics: opts.Metrics, now: now}
}

type call struct {
	apiType string
	stage   string
	method  string
	url     string
	header  string
	value   string
	body    any
}

// do issues the call and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, in call) (json.RawMessage, error) {
	req := c.http.R().SetContext(ctx)
	if in.header != "" {
		req.SetHeader(in.header, in.value)
	}
	if in.body != nil {
		req.SetBody(in.body)
	}

	start := c.now()
	resp, err := req.Execute(in.method, in.url)
	c.metrics.ObserveProvider(in.apiType, in.stage, c.now().Sub(start))
	if err != nil {
		c.logger.Warn().Err(err).
			Str("api_type", in.apiType).
			Str("stage", in.stage).
			Str("url", in.url).
			Msg("provider request failed")
		return nil, &domain.ProviderError{
			APIType:   in.apiType,
			Message:   err.Error(),
			Retryable: true,
		}
	}

	body := json.RawMessage(resp.Body())
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		msg := extractMessage(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		c.logger.Warn().
			Str("api_type", in.apiType).
			Str("stage", in.stage).
			Int("status", status).
			Str("message", msg).
			Msg("provider returned non-success status")
		return nil, &domain.ProviderError{
			APIType:    in.apiType,
			StatusCode: status,
			Message:    msg,
			Raw:        diagnosticBody(body, status),
		}
	}
	return body, nil
}

// extractMessage pulls a human-readable message out of a provider error body.
func extractMessage(body []byte) string {
	var fields struct {
		Msg     string          `json:"msg"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, s := range []string{fields.Msg, fields.Message, fields.Detail} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if len(fields.Error) > 0 {
		var s string
		if json.Unmarshal(fields.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(fields.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return ""
}

// diagnosticBody keeps JSON bodies as-is and wraps anything else in a
// {code, msg} envelope so it can be stored in a jsonb column.
func diagnosticBody(body []byte, status int) json.RawMessage {
	if json.Valid(body) && len(body) > 0 {
		return append(json.RawMessage(nil), body...)
	}
	return statusEnvelope(status)
}

func statusEnvelope(status int) json.RawMessage {
	return jsoncfg.MustMarshal(map[string]any{"code": status, "msg": http.StatusText(status)})
}

// malformed reports a success response whose shape could not be read.
func malformed(apiType, what string, raw json.RawMessage) error {
	return &domain.ProviderError{
		APIType: apiType,
		Message: "malformed response: " + what,
		Raw:     diagnosticBody(raw, 0),
	}
}
