package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"genstudio/internal/domain"
)

// Outcome is a normalized status response.
type Outcome struct {
	Status domain.GenerationStatus
	// FileURL is the first produced artifact; empty when nothing was produced.
	FileURL string
	// URLs lists every produced artifact URL.
	URLs []string
}

func pending() Outcome { return Outcome{Status: domain.StatusPending} }

func completed(urls ...string) Outcome {
	out := Outcome{Status: domain.StatusCompleted}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out.URLs = append(out.URLs, u)
		}
	}
	if len(out.URLs) > 0 {
		out.FileURL = out.URLs[0]
	}
	return out
}

// Normalizer maps a family's raw status response to an Outcome. It returns a
// *domain.ProviderError when the provider reports failure or the success
// payload cannot be read.
type Normalizer interface {
	Normalize(raw json.RawMessage) (Outcome, error)
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(raw json.RawMessage) (Outcome, error)

func (f NormalizerFunc) Normalize(raw json.RawMessage) (Outcome, error) { return f(raw) }

func failed(apiType, msg string, raw json.RawMessage) (Outcome, error) {
	return Outcome{Status: domain.StatusError}, &domain.ProviderError{
		APIType: apiType,
		Message: msg,
		Raw:     diagnosticBody(raw, 0),
	}
}

func broken(apiType, what string, raw json.RawMessage) (Outcome, error) {
	return Outcome{Status: domain.StatusError}, malformed(apiType, what, raw)
}

// urlList accepts either a single URL string or an array of them.
type urlList []string

func (u *urlList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*u = urlList{one}
		}
		return nil
	}
	var many []json.RawMessage
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	for _, item := range many {
		var s string
		if json.Unmarshal(item, &s) == nil && s != "" {
			*u = append(*u, s)
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(item, &obj) == nil && obj.URL != "" {
			*u = append(*u, obj.URL)
		}
	}
	return nil
}

// taskEnvelope is the createTask / customApiGenerate status response.
type taskEnvelope struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		State       string          `json:"state"`
		SuccessFlag *int            `json:"successFlag"`
		ResultJSON  string          `json:"resultJson"`
		Response    json.RawMessage `json:"response"`
		FailMsg     string          `json:"failMsg"`
		ErrorMsg    string          `json:"errorMessage"`
	} `json:"data"`
}

// gate applies the shared failure checks of the task-envelope families.
func (e taskEnvelope) gate(apiType string, raw json.RawMessage) (bool, Outcome, error) {
	codeOK := e.Code != nil && *e.Code == http.StatusOK
	if !codeOK || e.Data == nil || e.Data.State == "fail" || (e.Data.SuccessFlag != nil && *e.Data.SuccessFlag == 3) {
		code := 0
		if e.Code != nil {
			code = *e.Code
		}
		msg := e.Msg
		if e.Data != nil {
			for _, m := range []string{e.Data.FailMsg, e.Data.ErrorMsg} {
				if m != "" {
					msg = m
					break
				}
			}
		}
		out, err := failed(apiType, fmt.Sprintf("API error: %d %s", code, msg), raw)
		return false, out, err
	}
	return true, Outcome{}, nil
}

func normalizeCreateTask(raw json.RawMessage) (Outcome, error) {
	const apiType = domain.APITypeCreateTask
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return broken(apiType, "body is not a json object", raw)
	}
	if ok, out, err := env.gate(apiType, raw); !ok {
		return out, err
	}
	if env.Data.State != "success" {
		return pending(), nil
	}
	var result struct {
		ResultURLs urlList `json:"resultUrls"`
	}
	if strings.TrimSpace(env.Data.ResultJSON) != "" {
		if err := json.Unmarshal([]byte(env.Data.ResultJSON), &result); err != nil {
			return broken(apiType, "resultJson is not valid json", raw)
		}
	}
	return completed(result.ResultURLs...), nil
}

func normalizeCustomAPI(raw json.RawMessage) (Outcome, error) {
	const apiType = domain.APITypeCustomAPIGenerate
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return broken(apiType, "body is not a json object", raw)
	}
	if ok, out, err := env.gate(apiType, raw); !ok {
		return out, err
	}
	if env.Data.SuccessFlag == nil || *env.Data.SuccessFlag != 1 {
		return pending(), nil
	}
	return completed(customAPIURLs(env.Data.Response)...), nil
}

// customAPIURLs reads data.response as an array, {resultUrls}, or
// {resultImageUrl}, in that order.
func customAPIURLs(resp json.RawMessage) []string {
	if len(resp) == 0 {
		return nil
	}
	var list urlList
	if strings.HasPrefix(strings.TrimSpace(string(resp)), "[") && json.Unmarshal(resp, &list) == nil {
		return list
	}
	var obj struct {
		ResultURLs     urlList `json:"resultUrls"`
		ResultImageURL string  `json:"resultImageUrl"`
	}
	if json.Unmarshal(resp, &obj) != nil {
		return nil
	}
	if len(obj.ResultURLs) > 0 {
		return obj.ResultURLs
	}
	if obj.ResultImageURL != "" {
		return []string{obj.ResultImageURL}
	}
	return nil
}

func normalizeFal(raw json.RawMessage) (Outcome, error) {
	var body struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return broken(domain.APITypeFalGenerate, "body is not a json object", raw)
	}
	urls := make([]string, 0, len(body.Images))
	for _, img := range body.Images {
		if u := strings.TrimSpace(img.URL); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return pending(), nil
	}
	return completed(urls...), nil
}

func normalizeKling(raw json.RawMessage) (Outcome, error) {
	const apiType = domain.APITypeKlingGenerate
	var body struct {
		Code    *int   `json:"code"`
		Message string `json:"message"`
		Data    *struct {
			TaskStatus    string `json:"task_status"`
			TaskStatusMsg string `json:"task_status_msg"`
			TaskResult    struct {
				Images urlList `json:"images"`
				Videos urlList `json:"videos"`
			} `json:"task_result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return broken(apiType, "body is not a json object", raw)
	}
	if body.Data == nil {
		return broken(apiType, "data missing", raw)
	}
	switch body.Data.TaskStatus {
	case "failed":
		msg := body.Data.TaskStatusMsg
		if msg == "" {
			msg = body.Message
		}
		return failed(apiType, "API error: "+msg, raw)
	case "succeed":
		urls := body.Data.TaskResult.Images
		if len(urls) == 0 {
			urls = body.Data.TaskResult.Videos
		}
		if len(urls) == 0 {
			return broken(apiType, "missing media URL in task_result", raw)
		}
		return completed(urls...), nil
	default:
		return pending(), nil
	}
}

func normalizeVidu(raw json.RawMessage) (Outcome, error) {
	const apiType = domain.APITypeViduGenerate
	var body struct {
		State     string  `json:"state"`
		ErrCode   string  `json:"err_code"`
		Creations urlList `json:"creations"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return broken(apiType, "body is not a json object", raw)
	}
	switch body.State {
	case "failed":
		return failed(apiType, "API error: "+body.ErrCode, raw)
	case "success":
		if len(body.Creations) == 0 {
			return broken(apiType, "missing creations[0].url", raw)
		}
		return completed(body.Creations...), nil
	default:
		return pending(), nil
	}
}

// normalizePrediction also serves mergeVideos, which reports through the
// same prediction resource.
func normalizePrediction(apiType string) NormalizerFunc {
	return func(raw json.RawMessage) (Outcome, error) {
		var body struct {
			Status string          `json:"status"`
			Output json.RawMessage `json:"output"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return broken(apiType, "body is not a json object", raw)
		}
		if body.Status != "succeeded" {
			return pending(), nil
		}
		var urls urlList
		if len(body.Output) > 0 && json.Unmarshal(body.Output, &urls) != nil {
			return broken(apiType, "output is neither a url nor a list of urls", raw)
		}
		if len(urls) == 0 {
			return broken(apiType, "output missing", raw)
		}
		return completed(urls...), nil
	}
}

func normalizeVideoGenerations(raw json.RawMessage) (Outcome, error) {
	const apiType = domain.APITypeVideoGenerations
	var body struct {
		Status string `json:"status"`
		Video  *struct {
			URL string `json:"url"`
		} `json:"video"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return broken(apiType, "body is not a json object", raw)
	}
	if body.Status != "completed" {
		return pending(), nil
	}
	if body.Video == nil || strings.TrimSpace(body.Video.URL) == "" {
		return broken(apiType, "video.url missing", raw)
	}
	return completed(body.Video.URL), nil
}

// normalizeInstant reads the synchronous create response.
func normalizeInstant(raw json.RawMessage) (Outcome, error) {
	res, err := extractInstantURL(domain.APITypeImageInstant, domain.ProviderConfig{}, raw)
	if err != nil {
		return Outcome{Status: domain.StatusError}, err
	}
	return completed(res.ResultURL), nil
}
