package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"genstudio/internal/archive"
	"genstudio/internal/artifact"
	"genstudio/internal/domain"
	"genstudio/internal/domain/jsoncfg"
	"genstudio/internal/pricing"
	"genstudio/internal/providers"
)

// Reconciler moves a job toward a terminal state using the provider's
// current view of it.
type Reconciler struct {
	opts      Options
	completer *completer
}

func NewReconciler(opts Options) *Reconciler {
	opts = opts.withDefaults()
	return &Reconciler{opts: opts, completer: &completer{opts: opts}}
}

// Reconcile checks job id against its provider and stores the result. The
// returned status is the one held by the job after the pass. Only a missing
// job fails without touching the row.
//
// Reconciling a terminal job re-queries the provider and refreshes
// polling_response, but never imports again or changes status or duration.
func (r *Reconciler) Reconcile(ctx context.Context, id string) (domain.GenerationStatus, error) {
	release, busy := r.opts.lock(ctx, id)
	defer release()
	if busy {
		gen, err := r.opts.Generations.Get(ctx, id)
		if err != nil {
			return "", err
		}
		r.opts.Logger.Debug().Str("generation_id", id).Msg("reconcile already running elsewhere")
		return gen.Status, nil
	}

	gen, err := r.opts.Generations.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if gen.Model == nil {
		return r.abandon(ctx, gen, "", fmt.Errorf("%w: generation has no model configuration", domain.ErrInvalidModel))
	}
	apiType := gen.Model.API.APIType
	fam, ok := r.opts.Registry.Lookup(apiType)
	if !ok {
		return r.abandon(ctx, gen, apiType, fmt.Errorf("%w: unsupported api_type %q", domain.ErrInvalidModel, apiType))
	}

	log := r.opts.Logger.With().
		Str("generation_id", gen.ID).
		Str("user_id", gen.UserID).
		Str("api_type", apiType).
		Str("task_id", gen.TaskID).
		Logger()

	var raw json.RawMessage
	if fam.Synchronous {
		if gen.Status.Terminal() {
			return gen.Status, nil
		}
		// the ledger claim keeps a second caller from paying for the same job
		claimed, err := r.opts.Generations.Claim(ctx, gen.ID, r.opts.ClaimTTL)
		if err != nil {
			log.Error().Err(err).Msg("claim instant generation failed")
			return gen.Status, err
		}
		if !claimed {
			log.Debug().Msg("instant generation is being completed elsewhere")
			return gen.Status, nil
		}
		if hasBody(gen.Response) {
			// the create call already succeeded; finish from its result
			raw = gen.Response
		} else {
			res, err := fam.Adapter.Create(ctx, providers.CreateRequest{Payload: gen.PayloadMap(), Config: gen.Model.API})
			if err != nil {
				log.Error().Err(err).Msg("instant generation re-run failed")
				return r.completer.fail(ctx, gen, fam, err, nil)
			}
			raw = res.Raw
		}
	} else {
		raw, err = r.opts.Status.CheckStatus(ctx, fam, gen)
		if err != nil {
			if pe, ok := domain.AsProviderError(err); ok && pe.Retryable {
				log.Warn().Err(err).Msg("status check unreachable, job stays pending")
				duration := gen.ElapsedSeconds(r.opts.Now())
				if uerr := r.opts.Generations.Update(ctx, domain.GenerationUpdate{
					ID:              gen.ID,
					PollingResponse: pe.Raw,
					Duration:        &duration,
				}); uerr != nil {
					log.Error().Err(uerr).Msg("record retryable status failure")
				}
				r.opts.Metrics.ObserveReconcile(apiType, "retry")
				return gen.Status, err
			}
			log.Error().Err(err).Msg("status check failed")
			return r.completer.fail(ctx, gen, fam, err, nil)
		}
	}

	r.opts.archive(ctx, gen, archive.StagePoll, apiType, raw)
	return r.completer.finish(ctx, gen, fam, raw)
}

// abandon records elapsed time for a job that cannot be reconciled at all.
func (r *Reconciler) abandon(ctx context.Context, gen *domain.Generation, apiType string, cause error) (domain.GenerationStatus, error) {
	r.opts.Logger.Error().Err(cause).
		Str("generation_id", gen.ID).
		Str("api_type", apiType).
		Msg("generation cannot be reconciled")
	duration := gen.ElapsedSeconds(r.opts.Now())
	if err := r.opts.Generations.Update(ctx, domain.GenerationUpdate{ID: gen.ID, Duration: &duration}); err != nil {
		return gen.Status, errors.Join(cause, err)
	}
	return gen.Status, cause
}

// completer turns a provider response into the job's stored outcome. It is
// shared by the dispatch path of synchronous families and by reconcile.
type completer struct {
	opts Options
}

// finish normalizes raw, imports a produced artifact and persists the
// outcome. Import failures only fail synchronous families.
func (c *completer) finish(ctx context.Context, gen *domain.Generation, fam *providers.Family, raw json.RawMessage) (domain.GenerationStatus, error) {
	log := c.opts.Logger.With().
		Str("generation_id", gen.ID).
		Str("api_type", fam.APIType).
		Str("task_id", gen.TaskID).
		Logger()

	out, err := fam.Normalizer.Normalize(raw)
	if err != nil {
		log.Error().Err(err).Msg("provider reported failure")
		return c.fail(ctx, gen, fam, err, raw)
	}

	status := out.Status
	var importErr error
	if status == domain.StatusCompleted && !gen.Status.Terminal() && out.FileURL != "" {
		res, err := c.opts.Importer.Import(ctx, artifact.Request{URL: out.FileURL, Generation: gen, Callback: raw})
		switch {
		case err != nil:
			importErr = err
			log.Error().Err(err).Str("file_url", out.FileURL).Msg("artifact import failed")
			if fam.Synchronous {
				status = domain.StatusError
			}
		default:
			if err := c.opts.Generations.AttachFile(ctx, gen.ID, res.FileID); err != nil {
				importErr = err
				log.Error().Err(err).Str("file_id", res.FileID).Msg("attach file failed")
				if fam.Synchronous {
					status = domain.StatusError
				}
			} else {
				gen.Files = append(gen.Files, res.FileID)
			}
		}
	}

	upd := domain.GenerationUpdate{ID: gen.ID, Status: status, PollingResponse: raw}
	if !gen.Status.Terminal() {
		duration := gen.ElapsedSeconds(c.opts.Now())
		upd.Duration = &duration
		if status == domain.StatusCompleted && gen.Model != nil {
			settled := pricing.ComputeFromResponse(pricing.ParseRule(gen.Model.API.Pricing), pricing.Result{
				URLs:     out.URLs,
				Input:    gen.PayloadMap(),
				Response: responseObject(raw),
			})
			upd.SettledCost = &settled
		}
	}
	if err := c.opts.Generations.Update(ctx, upd); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("persist reconcile outcome failed")
		return gen.Status, err
	}

	final := settle(gen, status)
	c.opts.Metrics.ObserveReconcile(fam.APIType, string(final))
	log.Info().Str("status", string(final)).Msg("generation reconciled")

	if fam.Synchronous && importErr != nil {
		return final, importErr
	}
	return final, nil
}

// fail marks gen as error, keeping the provider's diagnostic body when the
// error carries one.
func (c *completer) fail(ctx context.Context, gen *domain.Generation, fam *providers.Family, cause error, raw json.RawMessage) (domain.GenerationStatus, error) {
	if pe, ok := domain.AsProviderError(cause); ok && len(pe.Raw) > 0 {
		raw = pe.Raw
	}
	upd := domain.GenerationUpdate{ID: gen.ID, Status: domain.StatusError, PollingResponse: raw}
	if !gen.Status.Terminal() {
		duration := gen.ElapsedSeconds(c.opts.Now())
		upd.Duration = &duration
	}
	if err := c.opts.Generations.Update(ctx, upd); err != nil {
		return gen.Status, errors.Join(cause, err)
	}
	final := settle(gen, domain.StatusError)
	c.opts.Metrics.ObserveReconcile(fam.APIType, string(final))
	return final, cause
}

// settle applies status to gen the way the ledger does: terminal states stick.
func settle(gen *domain.Generation, status domain.GenerationStatus) domain.GenerationStatus {
	if !gen.Status.Terminal() {
		gen.Status = status
	}
	return gen.Status
}

// responseObject is the settlement view of a provider response; anything
// that is not a JSON object prices from the payload alone.
func responseObject(raw json.RawMessage) map[string]any {
	out, err := jsoncfg.DecodeObject(raw)
	if err != nil {
		return nil
	}
	return out
}

func hasBody(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
