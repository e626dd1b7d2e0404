package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

// Dispatcher submits generation requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, modelID string, payload map[string]any) (*domain.Generation, error)
}

// Reconciler settles one job.
type Reconciler interface {
	Reconcile(ctx context.Context, id string) (domain.GenerationStatus, error)
}

// GenerationReader loads jobs for display.
type GenerationReader interface {
	Get(ctx context.Context, id string) (*domain.Generation, error)
}

type Deps struct {
	Generations   GenerationReader
	Dispatcher    Dispatcher
	Reconciler    Reconciler
	Logger        *infra.Logger
	WebhookSecret string
	// ReconcileTimeout bounds reconciles started by the polling webhook.
	ReconcileTimeout time.Duration
	Now              func() time.Time
}

type App struct {
	generations      GenerationReader
	dispatcher       Dispatcher
	reconciler       Reconciler
	logger           *infra.Logger
	webhookSecret    string
	reconcileTimeout time.Duration
	now              func() time.Time

	// background tracks reconciles still running after their webhook returned.
	background sync.WaitGroup
}

func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = infra.DiscardLogger()
	}
	if d.ReconcileTimeout <= 0 {
		d.ReconcileTimeout = 5 * time.Minute
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &App{
		generations:      d.Generations,
		dispatcher:       d.Dispatcher,
		reconciler:       d.Reconciler,
		logger:           d.Logger,
		webhookSecret:    d.WebhookSecret,
		reconcileTimeout: d.ReconcileTimeout,
		now:              d.Now,
	}
}

// Wait blocks until background reconciles have finished.
func (a *App) Wait() {
	a.background.Wait()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON request body. Numbers stay json.Number so integer
// fields such as seeds pass through to providers unrounded.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, key string) {
	middleware.WriteError(w, r, status, code, key)
}

// fail maps a domain error to its HTTP status. Provider messages are passed
// through since they are the only useful explanation a user gets.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		a.error(w, r, http.StatusPaymentRequired, "insufficient_balance", middleware.MsgInsufficientBalance)
	case errors.Is(err, domain.ErrInvalidModel):
		a.error(w, r, http.StatusBadRequest, "invalid_model", middleware.MsgInvalidModel)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, "not_found", middleware.MsgModelNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, r, http.StatusUnauthorized, "unauthorized", middleware.MsgInvalidToken)
	case errors.Is(err, domain.ErrProviderFailure):
		msg := middleware.Printer(r.Context()).Sprintf(middleware.MsgProviderFailure)
		if pe, ok := domain.AsProviderError(err); ok && pe.Message != "" {
			msg = pe.Message
		}
		middleware.WriteErrorMessage(w, http.StatusBadGateway, "provider_error", msg)
	default:
		a.logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("unhandled error")
		a.error(w, r, http.StatusInternalServerError, "internal", middleware.MsgInternal)
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}
