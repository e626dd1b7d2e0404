package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"genstudio/internal/artifact"
	"genstudio/internal/domain"
	"genstudio/internal/providers"
)

var createdAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ledger is an in-memory GenerationRepository that applies the same rules as
// the SQL statements: atomic debit, terminal status and duration stick.
type ledger struct {
	mu       sync.Mutex
	balances map[string]int64
	models   map[string]*domain.ModelConfig
	gens     map[string]*domain.Generation
	claims   map[string]time.Time
	now      func() time.Time
	seq      int
}

func newLedger() *ledger {
	return &ledger{
		balances: map[string]int64{},
		models:   map[string]*domain.ModelConfig{},
		gens:     map[string]*domain.Generation{},
		claims:   map[string]time.Time{},
		now:      func() time.Time { return createdAt },
	}
}

func (l *ledger) claimLive(id string) bool {
	until, ok := l.claims[id]
	return ok && until.After(l.now())
}

func cloneGen(g *domain.Generation) *domain.Generation {
	cp := *g
	cp.Files = append([]string(nil), g.Files...)
	return &cp
}

func (l *ledger) Get(_ context.Context, id string) (*domain.Generation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := cloneGen(g)
	if m, ok := l.models[g.ModelID]; ok {
		mc := *m
		cp.Model = &mc
	}
	return cp, nil
}

func (l *ledger) Create(_ context.Context, in domain.NewGeneration) (*domain.Generation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[in.UserID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if balance < in.Cost {
		return nil, domain.ErrInsufficientBalance
	}
	l.balances[in.UserID] = balance - in.Cost
	l.seq++
	g := &domain.Generation{
		ID:             fmt.Sprintf("gen-%d", l.seq),
		UserID:         in.UserID,
		ModelID:        in.ModelID,
		APIID:          in.APIID,
		GenerationType: in.GenerationType,
		Payload:        in.Payload,
		Response:       in.Response,
		Status:         domain.StatusPending,
		TaskID:         in.TaskID,
		Cost:           in.Cost,
		CreatedAt:      createdAt,
	}
	l.gens[g.ID] = g
	if in.ClaimFor > 0 {
		l.claims[g.ID] = l.now().Add(in.ClaimFor)
	}
	return cloneGen(g), nil
}

func (l *ledger) Update(_ context.Context, upd domain.GenerationUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gens[upd.ID]
	if !ok {
		return domain.ErrNotFound
	}
	wasPending := g.Status == domain.StatusPending
	if upd.Status != "" && wasPending {
		g.Status = upd.Status
	}
	if upd.Duration != nil && wasPending {
		d := *upd.Duration
		g.Duration = &d
	}
	if upd.Response != nil {
		g.Response = upd.Response
	}
	if upd.PollingResponse != nil {
		g.PollingResponse = upd.PollingResponse
	}
	if upd.SettledCost != nil {
		c := *upd.SettledCost
		g.SettledCost = &c
	}
	return nil
}

func (l *ledger) AttachFile(_ context.Context, generationID, fileID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gens[generationID]
	if !ok {
		return domain.ErrNotFound
	}
	g.Files = append(g.Files, fileID)
	return nil
}

func (l *ledger) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gens[id]
	if !ok || g.Status != domain.StatusPending || l.claimLive(id) {
		return false, nil
	}
	l.claims[id] = l.now().Add(ttl)
	return true, nil
}

func (l *ledger) ListPending(_ context.Context, _ time.Duration, limit int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for id, g := range l.gens {
		if g.Status == domain.StatusPending && !l.claimLive(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (l *ledger) stored(t *testing.T, id string) *domain.Generation {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gens[id]
	if !ok {
		t.Fatalf("generation %s not stored", id)
	}
	return cloneGen(g)
}

// seed stores a pending job for model without going through dispatch.
func (l *ledger) seed(model *domain.ModelConfig, taskID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.models[model.ID] = model
	l.seq++
	id := fmt.Sprintf("gen-%d", l.seq)
	l.gens[id] = &domain.Generation{
		ID:        id,
		UserID:    "user-1",
		ModelID:   model.ID,
		APIID:     model.API.ID,
		Payload:   json.RawMessage(`{"prompt":"a cat"}`),
		Status:    domain.StatusPending,
		TaskID:    taskID,
		Cost:      10,
		CreatedAt: createdAt,
	}
	return id
}

func (l *ledger) modelRepo() modelsFunc {
	return func(_ context.Context, id string) (*domain.ModelConfig, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		m, ok := l.models[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		cp := *m
		return &cp, nil
	}
}

type modelsFunc func(ctx context.Context, id string) (*domain.ModelConfig, error)

func (f modelsFunc) Get(ctx context.Context, id string) (*domain.ModelConfig, error) {
	return f(ctx, id)
}

type fakeImporter struct {
	mu   sync.Mutex
	err  error
	reqs []artifact.Request

	// entered and gate, when set, park Import until the test releases it
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeImporter) Import(_ context.Context, req artifact.Request) (*artifact.Result, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("file-%d", len(f.reqs))
	return &artifact.Result{FileID: id, FileURL: "https://files.example/u/" + id}, nil
}

func (f *fakeImporter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (f *fakeLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	return func() { f.released++ }, true, nil
}

// upstream is a stub provider with one create and one status endpoint.
type upstream struct {
	mu           sync.Mutex
	srv          *httptest.Server
	createStatus int
	createBody   string
	pollStatus   int
	pollBody     string
	creates      int
	polls        int
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{createStatus: http.StatusOK, pollStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /create", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.creates++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.createStatus)
		_, _ = w.Write([]byte(u.createBody))
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.polls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.pollStatus)
		_, _ = w.Write([]byte(u.pollBody))
	})
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) model(id, apiType, pricing string) *domain.ModelConfig {
	return &domain.ModelConfig{
		ID:             id,
		Name:           id,
		GenerationType: "video",
		API: domain.ProviderConfig{
			ID:         "api-" + id,
			APIType:    apiType,
			APIURL:     u.srv.URL + "/create",
			PollURL:    u.srv.URL + "/status/",
			ModelName:  "upstream-" + id,
			Pricing:    json.RawMessage(pricing),
			Credential: domain.Credential{Key: "ak", Secret: "sk"},
		},
	}
}

func (u *upstream) hits() (creates, polls int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.creates, u.polls
}

type harness struct {
	ledger   *ledger
	importer *fakeImporter
	up       *upstream
	opts     Options
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:   newLedger(),
		importer: &fakeImporter{},
		up:       newUpstream(t),
		now:      createdAt.Add(42 * time.Second),
	}
	h.ledger.now = func() time.Time { return h.now }
	client := providers.NewClient(providers.Options{Timeout: 5 * time.Second})
	h.opts = Options{
		Generations: h.ledger,
		Models:      h.ledger.modelRepo(),
		Registry:    providers.DefaultRegistry(client),
		Status:      client,
		Importer:    h.importer,
		Now:         func() time.Time { return h.now },
	}
	return h
}

var errImportBoom = errors.New("hosting unavailable")
