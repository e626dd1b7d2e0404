package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genstudio/internal/archive"
	"genstudio/internal/domain"
	"genstudio/internal/pricing"
	"genstudio/internal/providers"
)

// Dispatcher submits new generation requests.
type Dispatcher struct {
	opts      Options
	completer *completer
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{opts: opts, completer: &completer{opts: opts}}
}

// Dispatch calls the model's provider, prices the request and records the job,
// debiting the user in the same step. Synchronous families are completed
// before returning.
//
// The provider call happens before the debit. When the debit is refused the
// upstream task keeps running with no local record; its id is logged so it
// can be traced.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, modelID string, payload map[string]any) (*domain.Generation, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	model, err := d.opts.Models.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	apiType := model.API.APIType
	fam, ok := d.opts.Registry.Lookup(apiType)
	if !ok {
		d.opts.Metrics.ObserveDispatch(apiType, "invalid_model")
		return nil, fmt.Errorf("%w: unsupported api_type %q", domain.ErrInvalidModel, apiType)
	}

	log := d.opts.Logger.With().
		Str("user_id", userID).
		Str("model_id", model.ID).
		Str("api_type", apiType).
		Logger()

	res, err := fam.Adapter.Create(ctx, providers.CreateRequest{Payload: payload, Config: model.API})
	if err != nil {
		log.Error().Err(err).Msg("provider create failed")
		d.opts.Metrics.ObserveDispatch(apiType, "provider_error")
		return nil, err
	}

	cost := pricing.Compute(payload, pricing.ParseRule(model.API.Pricing))
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var claim time.Duration
	if fam.Synchronous {
		claim = d.opts.ClaimTTL
	}
	gen, err := d.opts.Generations.Create(ctx, domain.NewGeneration{
		UserID:         userID,
		ModelID:        model.ID,
		APIID:          model.API.ID,
		GenerationType: model.GenerationType,
		Payload:        rawPayload,
		Response:       res.Raw,
		TaskID:         res.TaskID,
		Cost:           cost,
		ClaimFor:       claim,
	})
	if err != nil {
		ev := log.Error()
		if errors.Is(err, domain.ErrInsufficientBalance) {
			ev = log.Warn()
			d.opts.Metrics.ObserveDispatch(apiType, "insufficient_balance")
		} else {
			d.opts.Metrics.ObserveDispatch(apiType, "ledger_error")
		}
		ev.Err(err).
			Str("task_id", res.TaskID).
			Int64("cost", cost).
			Msg("job not recorded after provider accepted it")
		return nil, err
	}
	gen.Model = model
	d.opts.archive(ctx, gen, archive.StageCreate, apiType, res.Raw)

	log.Info().
		Str("generation_id", gen.ID).
		Str("task_id", gen.TaskID).
		Int64("cost", cost).
		Msg("generation dispatched")

	if fam.Synchronous {
		// the row was inserted claimed; the lease also turns away reconciles
		// that reach it through another process
		release, _ := d.opts.lock(ctx, gen.ID)
		_, err := d.completer.finish(ctx, gen, fam, res.Raw)
		release()
		if err != nil {
			// the job is stored as error; the caller reads the outcome from gen
			d.opts.Metrics.ObserveDispatch(apiType, "completion_error")
			return gen, nil
		}
	}
	d.opts.Metrics.ObserveDispatch(apiType, "ok")
	return gen, nil
}
