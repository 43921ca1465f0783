package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const planKeyPrefix = "substitution:plan:"

// PlanCacheRepository stores unconfirmed plans in Redis so they survive API
// restarts and can be shared between replicas.
type PlanCacheRepository struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewPlanCacheRepository constructs a Redis-backed plan store.
func NewPlanCacheRepository(client redis.Cmdable, logger *zap.Logger) *PlanCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanCacheRepository{client: client, logger: logger}
}

// Save marshals the plan and stores it with the given TTL.
func (r *PlanCacheRepository) Save(ctx context.Context, plan models.Plan, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan %s: %w", plan.ID, err)
	}
	if err := r.client.Set(ctx, planKey(plan.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set plan %s: %w", plan.ID, err)
	}
	return nil
}

// Get loads a plan, returning ErrCacheMiss when absent or expired.
func (r *PlanCacheRepository) Get(ctx context.Context, id string) (models.Plan, error) {
	if r.client == nil {
		return models.Plan{}, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, planKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Plan{}, appErrors.ErrCacheMiss
		}
		return models.Plan{}, fmt.Errorf("redis get plan %s: %w", id, err)
	}
	var plan models.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		r.logger.Warn("discarding unreadable cached plan", zap.String("plan_id", id), zap.Error(err))
		_ = r.client.Del(ctx, planKey(id)).Err()
		return models.Plan{}, appErrors.ErrCacheMiss
	}
	return plan, nil
}

// Delete removes a plan.
func (r *PlanCacheRepository) Delete(ctx context.Context, id string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, planKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete plan %s: %w", id, err)
	}
	return nil
}

func planKey(id string) string {
	return planKeyPrefix + id
}
