package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"genstudio/internal/middleware"
)

type pollingRequest struct {
	ID string `json:"id"`
}

// PollingWebhook acknowledges a poll trigger and reconciles the job in the
// background. The response is 200 whatever the reconcile outcome; callers
// read the job to see it.
func (a *App) PollingWebhook(w http.ResponseWriter, r *http.Request) {
	if a.webhookSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.webhookSecret)) != 1 {
			a.error(w, r, http.StatusUnauthorized, "unauthorized", middleware.MsgInvalidToken)
			return
		}
	}
	var req pollingRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.ID) == "" {
		a.logger.Warn().Err(err).Msg("polling webhook without job id")
		a.json(w, http.StatusOK, envelope{Success: false, Message: "ignored"})
		return
	}
	id := strings.TrimSpace(req.ID)
	rid := middleware.RequestIDFromContext(r.Context())

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.reconcileTimeout)
		defer cancel()
		status, err := a.reconciler.Reconcile(ctx, id)
		log := a.logger.With().Str("generation_id", id).Str("request_id", rid).Logger()
		if err != nil {
			log.Error().Err(err).Str("status", string(status)).Msg("webhook reconcile failed")
			return
		}
		log.Info().Str("status", string(status)).Msg("webhook reconcile finished")
	}()

	a.json(w, http.StatusOK, envelope{Success: true, Message: "accepted"})
}
