// Package hosting uploads generated artifacts to the Zipline file host on
// behalf of a user.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Options configures a Zipline client.
type Options struct {
	BaseURL       string
	HTTPClient    *http.Client
	UploadTimeout time.Duration
	InfoTimeout   time.Duration
	Logger        *infra.Logger
}

// Zipline talks to a Zipline instance. Every call is authenticated with the
// user's own token, sent verbatim in the Authorization header.
type Zipline struct {
	http          *resty.Client
	uploadTimeout time.Duration
	infoTimeout   time.Duration
	logger        *infra.Logger
}

// UploadedFile is one entry of the upload response.
type UploadedFile struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// FileInfo is the hosted file record. Raw keeps the full response so it can
// be stored alongside the file row.
type FileInfo struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	OriginalName string          `json:"originalName"`
	Type         string          `json:"type"`
	URL          string          `json:"url"`
	Size         int64           `json:"size"`
	Raw          json.RawMessage `json:"-"`
}

func NewZipline(opts Options) (*Zipline, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("hosting: base url is required")
	}
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(base)

	upload := opts.UploadTimeout
	if upload <= 0 {
		upload = 300 * time.Second
	}
	info := opts.InfoTimeout
	if info <= 0 {
		info = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Zipline{http: rc, uploadTimeout: upload, infoTimeout: info, logger: logger}, nil
}

// Upload verifies the token against /api/user and then posts data as a
// multipart file. It returns the first file Zipline reports.
func (z *Zipline) Upload(ctx context.Context, token, filename string, data []byte) (*UploadedFile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrHostingAuthMissing
	}
	if err := z.checkAuth(ctx, token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, z.uploadTimeout)
	defer cancel()

	var out struct {
		Files []UploadedFile `json:"files"`
	}
	resp, err := z.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		SetMultipartField("file", filename, contentType(filename), bytes.NewReader(data)).
		SetResult(&out).
		Post("/api/upload")
	if err != nil {
		return nil, &domain.HostingError{Op: "upload", Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &domain.HostingError{Op: "upload", StatusCode: resp.StatusCode(), Message: errorMessage(resp)}
	}
	if len(out.Files) == 0 {
		return nil, &domain.HostingError{Op: "upload", Message: "no files returned from upload"}
	}
	z.logger.Debug().
		Str("file_id", out.Files[0].ID).
		Int("bytes", len(data)).
		Msg("hosting upload complete")
	return &out.Files[0], nil
}

// FileInfo fetches the hosted record for id.
func (z *Zipline) FileInfo(ctx context.Context, token, id string) (*FileInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrHostingAuthMissing
	}
	ctx, cancel := context.WithTimeout(ctx, z.infoTimeout)
	defer cancel()

	resp, err := z.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		Get("/api/user/files/" + url.PathEscape(id))
	if err != nil {
		return nil, &domain.HostingError{Op: "file info", Message: err.Error()}
	}
	if resp.IsError() {
		return nil, &domain.HostingError{Op: "file info", StatusCode: resp.StatusCode(), Message: errorMessage(resp)}
	}
	info := &FileInfo{}
	if err := json.Unmarshal(resp.Body(), info); err != nil {
		return nil, &domain.HostingError{Op: "file info", Message: "response is not a json object"}
	}
	info.Raw = append(json.RawMessage(nil), resp.Body()...)
	return info, nil
}

func (z *Zipline) checkAuth(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, z.infoTimeout)
	defer cancel()

	resp, err := z.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		Get("/api/user")
	if err != nil {
		return &domain.HostingError{Op: "authenticate", Message: err.Error()}
	}
	if resp.IsError() {
		return &domain.HostingError{Op: "authenticate", StatusCode: resp.StatusCode(), Message: errorMessage(resp)}
	}
	return nil
}

func errorMessage(resp *resty.Response) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "Unknown error"
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
