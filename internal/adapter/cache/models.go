// Package cache holds the Redis-backed helpers: a read-through model cache
// and a short-lived lock used to serialize reconciles of one job.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

const modelKeyPrefix = "genstudio:model:"

// ModelCache is a read-through cache in front of a ModelRepository. Redis
// failures degrade to direct repository reads.
//
// Provider credentials never reach Redis. The shared entry carries the model
// without its key and secret; credentials stay in process memory, filled by
// repository loads, and a Redis hit without a local credential reloads.
type ModelCache struct {
	repo   domain.ModelRepository
	rdb    redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger *infra.Logger

	mu    sync.RWMutex
	creds map[string]domain.Credential
}

// NewModelCache wraps repo. A nil rdb disables caching but still collapses
// concurrent loads of the same model.
func NewModelCache(repo domain.ModelRepository, rdb redis.Cmdable, ttl time.Duration, logger *infra.Logger) *ModelCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &ModelCache{
		repo:   repo,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
		creds:  make(map[string]domain.Credential),
	}
}

func (c *ModelCache) Get(ctx context.Context, id string) (*domain.ModelConfig, error) {
	if m, ok := c.lookup(ctx, id); ok {
		if cred, ok := c.credential(id); ok {
			m.API.Credential = cred
			return m, nil
		}
	}
	v, err, _ := c.group.Do(id, func() (any, error) {
		m, err := c.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.creds[id] = m.API.Credential
		c.mu.Unlock()
		c.store(ctx, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	// callers may mutate their copy
	cp := *v.(*domain.ModelConfig)
	return &cp, nil
}

// Invalidate drops the cached entry for id.
func (c *ModelCache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.creds, id)
	c.mu.Unlock()
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, modelKeyPrefix+id).Err()
}

func (c *ModelCache) lookup(ctx context.Context, id string) (*domain.ModelConfig, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, modelKeyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("model_id", id).Msg("model cache read failed")
		}
		return nil, false
	}
	var m domain.ModelConfig
	if err := json.Unmarshal(raw, &m); err != nil {
		c.logger.Warn().Err(err).Str("model_id", id).Msg("model cache entry corrupt")
		return nil, false
	}
	return &m, true
}

func (c *ModelCache) store(ctx context.Context, m *domain.ModelConfig) {
	if c.rdb == nil {
		return
	}
	shared := *m
	shared.API.Credential = domain.Credential{}
	raw, err := json.Marshal(&shared)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, modelKeyPrefix+m.ID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("model_id", m.ID).Msg("model cache write failed")
	}
}

func (c *ModelCache) credential(id string) (domain.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cred, ok := c.creds[id]
	return cred, ok
}

var _ domain.ModelRepository = (*ModelCache)(nil)
