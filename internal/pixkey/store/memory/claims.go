package memory

import (
	"context"
	"sync"
	"time"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
)

type ClaimStore struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]*models.Claim
}

func NewClaimStore() *ClaimStore {
	return &ClaimStore{claims: make(map[id.ClaimID]*models.Claim)}
}

func (s *ClaimStore) GetByID(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *ClaimStore) GetByIDOpenedBefore(ctx context.Context, claimID id.ClaimID, before time.Time) (*models.Claim, error) {
	c, err := s.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !c.OpenedAt.Before(before) {
		return nil, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *ClaimStore) Create(ctx context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[claim.ID]; exists {
		return sentinel.ErrConflict
	}
	s.claims[claim.ID] = claim.Clone()
	onRollback(ctx, func() { s.restore(claim.ID, nil) })
	return nil
}

func (s *ClaimStore) Update(ctx context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.claims[claim.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	s.claims[claim.ID] = claim.Clone()
	onRollback(ctx, func() { s.restore(claim.ID, prev) })
	return nil
}

func (s *ClaimStore) restore(claimID id.ClaimID, prev *models.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev == nil {
		delete(s.claims, claimID)
		return
	}
	s.claims[claimID] = prev
}
