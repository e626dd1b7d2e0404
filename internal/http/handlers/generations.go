package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
	"genstudio/internal/pricing"
)

type generateRequest struct {
	ModelID string         `json:"model_id"`
	Payload map[string]any `json:"payload"`
}

// Generate dispatches a job for the caller.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", middleware.MsgMissingAuthorization)
		return
	}
	var req generateRequest
	if err := decode(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", middleware.MsgInvalidPayload)
		return
	}
	req.ModelID = strings.TrimSpace(req.ModelID)
	if req.ModelID == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", middleware.MsgModelRequired)
		return
	}
	if _, err := uuid.Parse(req.ModelID); err != nil {
		a.error(w, r, http.StatusNotFound, "not_found", middleware.MsgModelNotFound)
		return
	}

	gen, err := a.dispatcher.Dispatch(r.Context(), userID, req.ModelID, req.Payload)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("model_id", req.ModelID).
			Msg("dispatch failed")
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, envelope{Success: true, Data: gen})
}

// GetGeneration returns one of the caller's jobs.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", middleware.MsgMissingAuthorization)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", middleware.MsgInvalidID)
		return
	}
	gen, err := a.generations.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && gen.UserID != userID) {
		a.error(w, r, http.StatusNotFound, "not_found", middleware.MsgGenerationNotFound)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, envelope{Success: true, Data: gen})
}

type calculateRequest struct {
	FormValues map[string]any  `json:"formValues"`
	Pricing    json.RawMessage `json:"pricing"`
}

// CalculateTokens estimates a request's cost. Malformed rules price at 0.
func (a *App) CalculateTokens(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decode(r, &req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", middleware.MsgInvalidPayload)
		return
	}
	cost := pricing.Compute(req.FormValues, pricing.ParseRule(req.Pricing))
	a.json(w, http.StatusOK, envelope{Success: true, Data: map[string]int64{"tokensCost": cost}})
}
