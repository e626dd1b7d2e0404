package domain

import (
	"encoding/json"
	"time"

	"genstudio/internal/domain/jsoncfg"
)

// GenerationStatus is the lifecycle state of a generation job.
type GenerationStatus string

const (
	StatusPending   GenerationStatus = "pending"
	StatusCompleted GenerationStatus = "completed"
	StatusError     GenerationStatus = "error"
)

// Terminal reports whether no further status transition is allowed.
func (s GenerationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Generation is one user-submitted generation request (a user_generations row).
type Generation struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	ModelID         string           `json:"model_id"`
	APIID           string           `json:"api_id"`
	GenerationType  string           `json:"generation_type,omitempty"`
	Payload         json.RawMessage  `json:"payload,omitempty"`
	Response        json.RawMessage  `json:"response,omitempty"`
	PollingResponse json.RawMessage  `json:"polling_response,omitempty"`
	Status          GenerationStatus `json:"status"`
	TaskID          string           `json:"task_id,omitempty"`
	Cost            int64            `json:"cost"`
	SettledCost     *int64           `json:"settled_cost,omitempty"`
	Duration        *int             `json:"duration,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`

	// Model is populated by lookups that join the model, provider and
	// credential rows.
	Model *ModelConfig `json:"-"`
	Files []string     `json:"file_ids,omitempty"`
}

// PayloadMap decodes the stored payload. A missing or non-object payload
// yields an empty map.
func (g *Generation) PayloadMap() map[string]any {
	if g == nil || len(g.Payload) == 0 {
		return map[string]any{}
	}
	out, err := jsoncfg.DecodeObject(g.Payload)
	if err != nil {
		return map[string]any{}
	}
	return out
}

// ElapsedSeconds is the whole seconds between creation and now.
func (g *Generation) ElapsedSeconds(now time.Time) int {
	if g == nil || g.CreatedAt.IsZero() {
		return 0
	}
	d := now.Sub(g.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// NewGeneration carries the fields written by the atomic debit-and-insert.
type NewGeneration struct {
	UserID         string
	ModelID        string
	APIID          string
	GenerationType string
	Payload        json.RawMessage
	Response       json.RawMessage
	TaskID         string
	Cost           int64
	// ClaimFor keeps the job claimed by its creator for this long, so
	// reconciles and sweeps leave it alone while dispatch is still finishing.
	ClaimFor time.Duration
}

// GenerationUpdate is a partial update; zero-valued fields are left alone.
// Status and Duration only take effect while the stored status is pending.
type GenerationUpdate struct {
	ID              string
	Status          GenerationStatus
	Response        json.RawMessage
	PollingResponse json.RawMessage
	Duration        *int
	SettledCost     *int64
}
