package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
)

type recordingReconciler struct {
	mu   sync.Mutex
	ids  []string
	fail map[string]error
}

func (r *recordingReconciler) Reconcile(_ context.Context, id string) (domain.GenerationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	if err := r.fail[id]; err != nil {
		return domain.StatusError, err
	}
	return domain.StatusCompleted, nil
}

func (r *recordingReconciler) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestPollerSweepContinuesPastFailures(t *testing.T) {
	l := newLedger()
	m := &domain.ModelConfig{ID: "m"}
	first := l.seed(m, "T1")
	second := l.seed(m, "T2")
	third := l.seed(m, "T3")
	rec := &recordingReconciler{fail: map[string]error{first: errors.New("boom")}}

	p := NewPoller(PollerOptions{Generations: l, Reconciler: rec, BatchSize: 10})
	n, err := p.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{first, second, third}, rec.seen())
}

func TestPollerSweepHonoursBatchSize(t *testing.T) {
	l := newLedger()
	m := &domain.ModelConfig{ID: "m"}
	for i := 0; i < 5; i++ {
		l.seed(m, "T")
	}
	rec := &recordingReconciler{}

	n, err := NewPoller(PollerOptions{Generations: l, Reconciler: rec, BatchSize: 2}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPollerSweepSkipsTerminalJobs(t *testing.T) {
	l := newLedger()
	m := &domain.ModelConfig{ID: "m"}
	done := l.seed(m, "T1")
	open := l.seed(m, "T2")
	require.NoError(t, l.Update(context.Background(), domain.GenerationUpdate{ID: done, Status: domain.StatusCompleted}))
	rec := &recordingReconciler{}

	_, err := NewPoller(PollerOptions{Generations: l, Reconciler: rec}).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{open}, rec.seen())
}

func TestPollerStartRunsOnSchedule(t *testing.T) {
	l := newLedger()
	id := l.seed(&domain.ModelConfig{ID: "m"}, "T1")
	rec := &recordingReconciler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPoller(PollerOptions{Generations: l, Reconciler: rec})
	require.NoError(t, p.Start(ctx, "@every 1s"))

	assert.Eventually(t, func() bool {
		seen := rec.seen()
		return len(seen) > 0 && seen[0] == id
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-p.Stopped():
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestPollerStartRejectsBadSchedule(t *testing.T) {
	p := NewPoller(PollerOptions{Generations: newLedger(), Reconciler: &recordingReconciler{}})
	require.Error(t, p.Start(context.Background(), "every now and then"))
}

func TestCronLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.InfoLevel)
	logger := cronLogger{log: &zl}

	logger.Info("wake", "now", "12:00")
	logger.Info("skip")
	logger.Error(errors.New("bad schedule"), "panic", "entry", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "scheduler chatter stays below info: %s", buf.String())

	var skip, failure map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &skip))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failure))
	assert.Equal(t, "info", skip["level"])
	assert.Equal(t, "cron", skip["component"])
	assert.Contains(t, skip["message"], "skipped")
	assert.Equal(t, "error", failure["level"])
	assert.Equal(t, "bad schedule", failure["error"])
	assert.Equal(t, float64(3), failure["entry"])
}
