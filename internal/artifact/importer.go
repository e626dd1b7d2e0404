// Package artifact copies provider outputs into the user's file hosting and
// records them as user files.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"genstudio/internal/domain"
	"genstudio/internal/hosting"
	"genstudio/internal/infra"
)

// Host is the file-hosting surface the importer needs.
type Host interface {
	Upload(ctx context.Context, token, filename string, data []byte) (*hosting.UploadedFile, error)
	FileInfo(ctx context.Context, token, id string) (*hosting.FileInfo, error)
}

// Previewer renders thumbnails.
type Previewer interface {
	Thumbnail(ctx context.Context, kind Kind, data []byte) ([]byte, error)
}

// Request describes one artifact to import.
type Request struct {
	URL        string
	Generation *domain.Generation
	// Callback is the raw provider response that reported the artifact.
	Callback json.RawMessage
}

// Result identifies the imported file.
type Result struct {
	FileID  string
	FileURL string
}

type ImporterOptions struct {
	HTTPClient      *http.Client
	DownloadTimeout time.Duration
	Host            Host
	Tokens          domain.HostingTokenSource
	Files           domain.FileRepository
	Previewer       Previewer
	Logger          *infra.Logger
	Metrics         *infra.Metrics
}

type Importer struct {
	http      *resty.Client
	host      Host
	tokens    domain.HostingTokenSource
	files     domain.FileRepository
	previewer Previewer
	logger    *infra.Logger
	metrics   *infra.Metrics
}

func NewImporter(opts ImporterOptions) *Importer {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := opts.DownloadTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rc.SetTimeout(timeout)

	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Importer{
		http:      rc,
		host:      opts.Host,
		tokens:    opts.Tokens,
		files:     opts.Files,
		previewer: opts.Previewer,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Import downloads req.URL, re-hosts it under the job owner's token and
// inserts the user_files row. Thumbnail failures are logged and skipped;
// every other failure aborts the import.
func (i *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	gen := req.Generation
	if gen == nil {
		return nil, fmt.Errorf("artifact: generation is required")
	}
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	start := time.Now()
	kind := DetectKind(req.URL, "")
	defer func() { i.metrics.ObserveImport(string(kind), time.Since(start)) }()

	token, err := i.tokens.HostingToken(ctx, gen.UserID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrHostingAuthMissing
	}

	data, err := i.download(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	name := fileName(req.URL)
	uploaded, err := i.host.Upload(ctx, token, name, data)
	if err != nil {
		return nil, err
	}
	info, err := i.host.FileInfo(ctx, token, uploaded.ID)
	if err != nil {
		return nil, err
	}
	if kind == KindOther {
		kind = DetectKind(req.URL, info.Type)
	}

	file := &domain.GeneratedFile{
		UserID:        gen.UserID,
		FileName:      info.Name,
		FilePath:      uploaded.URL,
		FileSize:      info.Size,
		FileType:      info.Type,
		ZipData:       info.Raw,
		ModelID:       gen.ModelID,
		GeneratedInfo: generatedInfo(gen.Payload, req.Callback),
		ThumbnailURL:  i.thumbnail(ctx, gen, kind, token, name, data),
	}
	id, err := i.files.Create(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("artifact: save file metadata: %w", err)
	}

	i.logger.Info().
		Str("generation_id", gen.ID).
		Str("file_id", id).
		Str("kind", string(kind)).
		Msg("artifact imported")
	return &Result{FileID: id, FileURL: uploaded.URL}, nil
}

func (i *Importer) download(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := i.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("artifact: download: %w", err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("artifact: download: %d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}
	return resp.Body(), nil
}

// thumbnail returns the hosted preview URL, or "" when none could be made.
func (i *Importer) thumbnail(ctx context.Context, gen *domain.Generation, kind Kind, token, name string, data []byte) string {
	if i.previewer == nil || (kind != KindImage && kind != KindVideo) {
		return ""
	}
	thumb, err := i.previewer.Thumbnail(ctx, kind, data)
	if err != nil {
		i.logger.Warn().Err(err).Str("generation_id", gen.ID).Msg("thumbnail generation failed")
		return ""
	}
	uploaded, err := i.host.Upload(ctx, token, thumbName(name), thumb)
	if err != nil {
		i.logger.Warn().Err(err).Str("generation_id", gen.ID).Msg("thumbnail upload failed")
		return ""
	}
	return uploaded.URL
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, raw)
	}
	return nil
}

func generatedInfo(payload, callback json.RawMessage) json.RawMessage {
	info := map[string]json.RawMessage{
		"payload":       orNull(payload),
		"callback_data": orNull(callback),
	}
	raw, _ := json.Marshal(info)
	return raw
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage("null")
	}
	return raw
}
