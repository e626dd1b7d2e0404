package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/domain/jsoncfg"
)

// CreateRequest is the input of a create call: the caller's payload and the
// provider configuration it is dispatched through.
type CreateRequest struct {
	Payload map[string]any
	Config  domain.ProviderConfig
}

// CreateResult is what a create call yields. TaskID is empty for families
// that answer synchronously, which report ResultURL instead.
type CreateResult struct {
	TaskID    string
	ResultURL string
	Raw       json.RawMessage
}

// Adapter issues the create call for one provider family.
type Adapter interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
}

// shapeFunc builds the outbound URL and body from a request.
type shapeFunc func(req CreateRequest) (url string, body any)

// taskIDFunc extracts the task id (or synchronous result URL) from a 2xx body.
type taskIDFunc func(apiType string, cfg domain.ProviderConfig, raw json.RawMessage) (*CreateResult, error)

// httpAdapter is the common create adapter; families differ only in auth,
// shape and extraction.
type httpAdapter struct {
	client  *Client
	apiType string
	auth    authFunc
	shape   shapeFunc
	extract taskIDFunc
}

func (a *httpAdapter) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	header, value, err := a.auth(req.Config, a.client.now())
	if err != nil {
		return nil, &domain.ProviderError{APIType: a.apiType, Message: err.Error()}
	}
	url, body := a.shape(req)
	raw, err := a.client.do(ctx, call{
		apiType: a.apiType,
		stage:   "create",
		method:  http.MethodPost,
		url:     url,
		header:  header,
		value:   value,
		body:    body,
	})
	if err != nil {
		return nil, err
	}
	res, err := a.extract(a.apiType, req.Config, raw)
	if err != nil {
		return nil, err
	}
	res.Raw = raw
	return res, nil
}

func copyPayload(p map[string]any) map[string]any {
	return jsoncfg.Merge(p, nil)
}

// shapeRaw sends the payload untouched.
func shapeRaw(req CreateRequest) (string, any) {
	return req.Config.APIURL, copyPayload(req.Payload)
}

// shapeCreateTask nests the cleaned payload under input; model_name is a
// routing field and never forwarded.
func shapeCreateTask(req CreateRequest) (string, any) {
	input := copyPayload(req.Payload)
	delete(input, "model_name")
	return req.Config.APIURL, map[string]any{
		"model": req.Config.ModelName,
		"input": jsoncfg.CleanObject(input),
	}
}

// shapeModelSpread lays the payload over {model} and cleans the result.
func shapeModelSpread(req CreateRequest) (string, any) {
	body := jsoncfg.Merge(map[string]any{"model": req.Config.ModelName}, req.Payload)
	return req.Config.APIURL, jsoncfg.CleanObject(body)
}

func shapePrediction(req CreateRequest) (string, any) {
	return req.Config.APIURL, map[string]any{"input": copyPayload(req.Payload)}
}

func shapeKling(req CreateRequest) (string, any) {
	body := jsoncfg.Merge(map[string]any{"model_name": req.Config.ModelName}, req.Payload)
	if images, ok := normalizeImageList(body["image_list"]); ok {
		body["image_list"] = images
	} else {
		delete(body, "image_list")
	}
	return req.Config.APIURL, body
}

// normalizeImageList converts entries to {image_url} objects and reports false
// when nothing usable remains.
func normalizeImageList(v any) ([]any, bool) {
	items, ok := v.([]any)
	if !ok {
		if s, isString := v.(string); isString {
			items = []any{s}
		} else {
			return nil, false
		}
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		var url any
		switch t := item.(type) {
		case string:
			url = t
		case map[string]any:
			for _, k := range []string{"image_url", "image", "url"} {
				if s, ok := t[k].(string); ok && s != "" {
					url = s
					break
				}
			}
		}
		if s, ok := url.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, map[string]any{"image_url": strings.TrimSpace(s)})
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// shapeVidu appends the genType path segment to the endpoint when the payload
// names one, and sends the rest of the payload as-is. Without genType the
// model is spread into the body.
func shapeVidu(req CreateRequest) (string, any) {
	body := copyPayload(req.Payload)
	if genType, ok := body["genType"].(string); ok && strings.TrimSpace(genType) != "" {
		delete(body, "genType")
		return req.Config.APIURL + strings.TrimSpace(genType), body
	}
	delete(body, "genType")
	return req.Config.APIURL, jsoncfg.Merge(map[string]any{"model": req.Config.ModelName}, body)
}

// envelope is the {code, msg, data} wrapper used by the createTask-style APIs.
type envelope struct {
	Code    *int            `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Message != "" {
		return e.Message
	}
	return "failed to generate"
}

// extractEnvelopeTaskID reads data.taskId after checking code == 200.
func extractEnvelopeTaskID(apiType string, _ domain.ProviderConfig, raw json.RawMessage) (*CreateResult, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, malformed(apiType, "body is not a json object", raw)
	}
	if env.Code == nil || *env.Code != http.StatusOK {
		code := 0
		if env.Code != nil {
			code = *env.Code
		}
		return nil, &domain.ProviderError{APIType: apiType, StatusCode: code, Message: env.message(), Raw: raw}
	}
	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return nil, malformed(apiType, "data.taskId missing", raw)
	}
	return &CreateResult{TaskID: data.TaskID}, nil
}

func extractField(field string) taskIDFunc {
	return func(apiType string, _ domain.ProviderConfig, raw json.RawMessage) (*CreateResult, error) {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, malformed(apiType, "body is not a json object", raw)
		}
		id := scalarString(body[field])
		if id == "" {
			return nil, malformed(apiType, field+" missing", raw)
		}
		return &CreateResult{TaskID: id}, nil
	}
}

func extractKlingTaskID(apiType string, _ domain.ProviderConfig, raw json.RawMessage) (*CreateResult, error) {
	var body struct {
		Code    *int   `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, malformed(apiType, "body is not a json object", raw)
	}
	if body.Data.TaskID == "" {
		if body.Message != "" {
			return nil, &domain.ProviderError{APIType: apiType, Message: body.Message, Raw: raw}
		}
		return nil, malformed(apiType, "data.task_id missing", raw)
	}
	return &CreateResult{TaskID: body.Data.TaskID}, nil
}

// extractFal picks the extraction path by vendor.
func extractFal(apiType string, cfg domain.ProviderConfig, raw json.RawMessage) (*CreateResult, error) {
	if usesKeyScheme(cfg) {
		return extractField("request_id")(apiType, cfg, raw)
	}
	return extractEnvelopeTaskID(apiType, cfg, raw)
}

// extractInstantURL reads the synchronous result URL from data[0].url.
func extractInstantURL(apiType string, _ domain.ProviderConfig, raw json.RawMessage) (*CreateResult, error) {
	var body struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, malformed(apiType, "body is not a json object", raw)
	}
	if len(body.Data) == 0 || strings.TrimSpace(body.Data[0].URL) == "" {
		return nil, malformed(apiType, "missing image URL", raw)
	}
	return &CreateResult{ResultURL: strings.TrimSpace(body.Data[0].URL)}, nil
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
