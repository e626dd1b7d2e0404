package generation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// JobReconciler reconciles a single job.
type JobReconciler interface {
	Reconcile(ctx context.Context, id string) (domain.GenerationStatus, error)
}

type PollerOptions struct {
	Generations domain.GenerationRepository
	Reconciler  JobReconciler
	// MaxAge bounds which pending jobs are still polled.
	MaxAge    time.Duration
	BatchSize int
	Logger    *infra.Logger
}

// Poller is the scheduled poll trigger: it sweeps recent pending jobs and
// reconciles them one at a time.
type Poller struct {
	opts PollerOptions
	done chan struct{}
}

func NewPoller(opts PollerOptions) *Poller {
	if opts.Logger == nil {
		opts.Logger = infra.DiscardLogger()
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Poller{opts: opts, done: make(chan struct{})}
}

// Sweep reconciles one batch of pending jobs and reports how many it visited.
// A failing job is logged and the sweep moves on.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	ids, err := p.opts.Generations.ListPending(ctx, p.opts.MaxAge, p.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	visited := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		visited++
		status, err := p.opts.Reconciler.Reconcile(ctx, id)
		if err != nil {
			p.opts.Logger.Warn().Err(err).
				Str("generation_id", id).
				Str("status", string(status)).
				Msg("reconcile failed")
		}
	}
	if visited > 0 {
		p.opts.Logger.Info().Int("jobs", visited).Msg("poll sweep finished")
	}
	return visited, nil
}

// Start schedules Sweep on schedule (cron syntax or "@every 15s"). Overlapping
// ticks are skipped. The scheduler stops when ctx is cancelled.
func (p *Poller) Start(ctx context.Context, schedule string) error {
	logger := cronLogger{log: p.opts.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(schedule, func() {
		if _, err := p.Sweep(ctx); err != nil {
			p.opts.Logger.Error().Err(err).Msg("list pending generations failed")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	p.opts.Logger.Info().Str("schedule", schedule).Msg("poller started")

	go func() {
		<-ctx.Done()
		p.opts.Logger.Info().Msg("stopping poller")
		<-c.Stop().Done()
		close(p.done)
	}()
	return nil
}

// Stopped is closed once a started poller has stopped and its last sweep
// has returned.
func (p *Poller) Stopped() <-chan struct{} {
	return p.done
}

// cronLogger routes the scheduler's own messages into zerolog. Scheduler
// chatter goes to debug; a skipped tick is worth an info line.
type cronLogger struct {
	log *infra.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	ev := l.log.Debug()
	if msg == "skip" {
		ev = l.log.Info()
		msg = "poll tick skipped, previous sweep still running"
	}
	ev.Fields(keysAndValues).Str("component", "cron").Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Str("component", "cron").Msg(msg)
}

var _ cron.Logger = cronLogger{}
