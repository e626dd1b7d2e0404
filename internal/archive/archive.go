// Package archive keeps copies of raw provider exchanges outside the
// database, for audit and debugging of settled jobs.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"genstudio/internal/infra"
)

// Stages recorded by the generation flow.
const (
	StageCreate = "create"
	StagePoll   = "poll"
)

// Record is one archived provider response.
type Record struct {
	GenerationID string          `json:"generation_id"`
	Stage        string          `json:"stage"`
	APIType      string          `json:"api_type"`
	ArchivedAt   time.Time       `json:"archived_at"`
	Payload      json.RawMessage `json:"payload"`
}

// Sink stores records. Implementations must be safe for concurrent use.
type Sink interface {
	Archive(ctx context.Context, rec Record) error
}

// NoopSink drops every record.
type NoopSink struct{}

func (NoopSink) Archive(context.Context, Record) error { return nil }

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes each record as a JSON object under a date-partitioned key.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
	logger *infra.Logger
	now    func() time.Time
}

// NewS3Sink loads the default AWS configuration for region.
func NewS3Sink(ctx context.Context, bucket, region, prefix string, logger *infra.Logger) (*S3Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Sink(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Sink(client objectPutter, bucket, prefix string, logger *infra.Logger) *S3Sink {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, logger: logger, now: time.Now}
}

// Key layout: <prefix>2026/03/01/<generation>-<stage>-<unixnano>.json
func (s *S3Sink) key(rec Record, at time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.json",
		s.prefix, at.Year(), at.Month(), at.Day(),
		rec.GenerationID, rec.Stage, at.UnixNano())
}

func (s *S3Sink) Archive(ctx context.Context, rec Record) error {
	at := s.now().UTC()
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = at
	}
	if len(rec.Payload) == 0 || !json.Valid(rec.Payload) {
		rec.Payload = json.RawMessage("null")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}
	key := s.key(rec, at)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(body)).Msg("archived provider response")
	return nil
}

// New returns an S3Sink when a bucket is configured and a NoopSink otherwise.
func New(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (Sink, error) {
	if cfg.ArchiveBucket == "" {
		return NoopSink{}, nil
	}
	return NewS3Sink(ctx, cfg.ArchiveBucket, cfg.ArchiveRegion, cfg.ArchivePrefix, logger)
}
