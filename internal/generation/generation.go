// Package generation runs the job lifecycle: dispatching a request to its
// provider family, reconciling pending jobs against provider status, and
// sweeping pending jobs on a schedule.
package generation

import (
	"context"
	"encoding/json"
	"time"

	"genstudio/internal/archive"
	"genstudio/internal/artifact"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/providers"
)

// StatusChecker fetches a job's raw provider status.
type StatusChecker interface {
	CheckStatus(ctx context.Context, f *providers.Family, gen *domain.Generation) (json.RawMessage, error)
}

// Importer re-hosts a produced artifact.
type Importer interface {
	Import(ctx context.Context, req artifact.Request) (*artifact.Result, error)
}

// Locker serializes reconciles of the same job across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Options carries the collaborators shared by Dispatcher and Reconciler.
// Archive, Locker, Metrics and Logger are optional.
//
// ClaimTTL bounds how long a synchronous job stays claimed by the process
// completing it; it must cover a download plus a hosting upload.
type Options struct {
	Generations domain.GenerationRepository
	Models      domain.ModelRepository
	Registry    *providers.Registry
	Status      StatusChecker
	Importer    Importer
	Archive     archive.Sink
	Locker      Locker
	LockTTL     time.Duration
	ClaimTTL    time.Duration
	Logger      *infra.Logger
	Metrics     *infra.Metrics
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Archive == nil {
		o.Archive = archive.NoopSink{}
	}
	if o.Logger == nil {
		o.Logger = infra.DiscardLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 2 * time.Minute
	}
	if o.ClaimTTL <= 0 {
		o.ClaimTTL = 10 * time.Minute
	}
	return o
}

// lock takes the per-job reconcile lease. busy is true only when another
// holder was observed; a missing or failing Locker yields a no-op release.
func (o Options) lock(ctx context.Context, id string) (release func(), busy bool) {
	noop := func() {}
	if o.Locker == nil {
		return noop, false
	}
	release, ok, err := o.Locker.TryLock(ctx, "reconcile:"+id, o.LockTTL)
	switch {
	case err != nil:
		o.Logger.Warn().Err(err).Str("generation_id", id).Msg("reconcile lock unavailable, continuing unlocked")
		return noop, false
	case !ok:
		return noop, true
	default:
		return release, false
	}
}

// archive stores raw provider output; failures only log.
func (o Options) archive(ctx context.Context, gen *domain.Generation, stage, apiType string, raw json.RawMessage) {
	err := o.Archive.Archive(ctx, archive.Record{
		GenerationID: gen.ID,
		Stage:        stage,
		APIType:      apiType,
		Payload:      raw,
	})
	if err != nil {
		o.Logger.Warn().Err(err).
			Str("generation_id", gen.ID).
			Str("stage", stage).
			Msg("archive provider response failed")
	}
}
