// File: internal/infra/redis/outcome_store.go
package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dgeemedia/business-sub001/internal/domain"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/repository"
)

const outcomeKeyPrefix = "checkout:outcome:"

var _ repository.OutcomeStore = (*OutcomeStore)(nil)

// OutcomeStore persists terminal session outcomes by reference so a
// re-issued verification replays the settled result.
type OutcomeStore struct {
	cli RedisClient
	ttl time.Duration
}

func NewOutcomeStore(cli RedisClient, ttl time.Duration) *OutcomeStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &OutcomeStore{cli: cli, ttl: ttl}
}

func (s *OutcomeStore) Get(ctx context.Context, reference string) (*model.SessionOutcome, error) {
	raw, err := s.cli.Get(ctx, outcomeKeyPrefix+reference)
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var out model.SessionOutcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *OutcomeStore) Put(ctx context.Context, reference string, out *model.SessionOutcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.cli.Set(ctx, outcomeKeyPrefix+reference, string(b), s.ttl)
}

var _ repository.OutcomeStore = (*MemoryOutcomeStore)(nil)

// MemoryOutcomeStore is the in-process fallback used when redis is not
// configured, and by tests.
type MemoryOutcomeStore struct {
	mu    sync.RWMutex
	store map[string]*model.SessionOutcome
}

func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{store: make(map[string]*model.SessionOutcome)}
}

func (s *MemoryOutcomeStore) Get(ctx context.Context, reference string) (*model.SessionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.store[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *out
	return &cp, nil
}

func (s *MemoryOutcomeStore) Put(ctx context.Context, reference string, out *model.SessionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *out
	s.store[reference] = &cp
	return nil
}
