package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// PlanStore keeps unconfirmed plans between operator requests. Get returns
// appErrors.ErrCacheMiss when the plan is unknown or expired.
type PlanStore interface {
	Save(ctx context.Context, plan models.Plan, ttl time.Duration) error
	Get(ctx context.Context, id string) (models.Plan, error)
	Delete(ctx context.Context, id string) error
}

type storedPlan struct {
	plan      models.Plan
	expiresAt time.Time
}

// MemoryPlanStore is the in-process plan store used for single-instance deployments.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	items map[string]storedPlan
	now   func() time.Time
}

// NewMemoryPlanStore builds an empty store.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{items: make(map[string]storedPlan), now: time.Now}
}

func (s *MemoryPlanStore) Save(_ context.Context, plan models.Plan, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[plan.ID] = storedPlan{plan: plan, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryPlanStore) Get(ctx context.Context, id string) (models.Plan, error) {
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.Plan{}, appErrors.ErrCacheMiss
	}
	if s.now().After(item.expiresAt) {
		_ = s.Delete(ctx, id)
		return models.Plan{}, appErrors.ErrCacheMiss
	}
	return item.plan, nil
}

func (s *MemoryPlanStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
