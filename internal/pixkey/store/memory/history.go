package memory

import (
	"context"
	"sync"
	"time"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
)

type HistoryStore struct {
	mu      sync.RWMutex
	entries map[id.KeyID][]*models.KeyHistory
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[id.KeyID][]*models.KeyHistory)}
}

func (s *HistoryStore) Create(ctx context.Context, entry *models.KeyHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	n := len(s.entries[entry.KeyID])
	s.entries[entry.KeyID] = append(s.entries[entry.KeyID], &cp)
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.entries[entry.KeyID]) > n {
			s.entries[entry.KeyID] = s.entries[entry.KeyID][:n]
		}
	})
	return nil
}

func (s *HistoryStore) ListByKeyID(_ context.Context, keyID id.KeyID) ([]*models.KeyHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.KeyHistory, 0, len(s.entries[keyID]))
	for _, e := range s.entries[keyID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

type VerificationStore struct {
	mu       sync.RWMutex
	attempts map[id.KeyID][]models.KeyVerification
}

func NewVerificationStore() *VerificationStore {
	return &VerificationStore{attempts: make(map[id.KeyID][]models.KeyVerification)}
}

func (s *VerificationStore) Create(ctx context.Context, v *models.KeyVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.attempts[v.KeyID])
	s.attempts[v.KeyID] = append(s.attempts[v.KeyID], *v)
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.attempts[v.KeyID]) > n {
			s.attempts[v.KeyID] = s.attempts[v.KeyID][:n]
		}
	})
	return nil
}

// CountFailedSince counts FAILED attempts created at or after since.
func (s *VerificationStore) CountFailedSince(_ context.Context, keyID id.KeyID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.attempts[keyID] {
		if v.State == models.VerificationFailed && !v.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
