package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// cachedSLAPolicyRepository caches active policy lookups in Redis.
// Policies are read on every ticket creation and status transition, and
// change rarely; a short TTL keeps administrative edits visible without
// hitting Postgres per request. Cache failures fall through to the
// underlying repository.
type cachedSLAPolicyRepository struct {
	inner  SLAPolicyRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSLAPolicyRepository wraps repo with a Redis read-through cache.
// A nil client or non-positive TTL disables caching.
func NewCachedSLAPolicyRepository(inner SLAPolicyRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) SLAPolicyRepository {
	if client == nil || ttl <= 0 {
		return inner
	}
	return &cachedSLAPolicyRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

type cachedPolicy struct {
	ID                string                `json:"id"`
	Priority          domain.TicketPriority `json:"priority"`
	ResponseMinutes   int64                 `json:"response_minutes"`
	ResolutionMinutes int64                 `json:"resolution_minutes"`
	Description       string                `json:"description"`
	Active            bool                  `json:"active"`
}

func policyCacheKey(priority domain.TicketPriority) string {
	return "sla:policy:" + string(priority)
}

func (r *cachedSLAPolicyRepository) GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	key := policyCacheKey(priority)
	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedPolicy
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &domain.SLAPolicy{
				ID:             cached.ID,
				Priority:       cached.Priority,
				ResponseTime:   time.Duration(cached.ResponseMinutes) * time.Minute,
				ResolutionTime: time.Duration(cached.ResolutionMinutes) * time.Minute,
				Description:    cached.Description,
				Active:         cached.Active,
			}, nil
		}
	} else if err != redis.Nil {
		r.logger.Debug("sla policy cache read failed", zap.Error(err))
	}

	policy, err := r.inner.GetActiveByPriority(ctx, priority)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(cachedPolicy{
		ID:                policy.ID,
		Priority:          policy.Priority,
		ResponseMinutes:   int64(policy.ResponseTime / time.Minute),
		ResolutionMinutes: int64(policy.ResolutionTime / time.Minute),
		Description:       policy.Description,
		Active:            policy.Active,
	})
	if err == nil {
		if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
			r.logger.Debug("sla policy cache write failed", zap.Error(err))
		}
	}
	return policy, nil
}

func (r *cachedSLAPolicyRepository) List(ctx context.Context) ([]domain.SLAPolicy, error) {
	return r.inner.List(ctx)
}
