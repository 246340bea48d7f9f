// Package memory provides in-memory implementations of the pix key ports,
// used by tests and by the worker when no database is configured.
//
// Every store hands out clones so callers can never mutate stored rows
// without going through Update.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
)

type KeyStore struct {
	mu   sync.RWMutex
	keys map[id.KeyID]*models.Key
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[id.KeyID]*models.Key)}
}

func (s *KeyStore) GetByID(_ context.Context, keyID id.KeyID) (*models.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return key.Clone(), nil
}

func (s *KeyStore) GetByIDNonCanceled(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	key, err := s.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key.IsCanceled() {
		return nil, sentinel.ErrNotFound
	}
	return key, nil
}

func (s *KeyStore) GetByOwnerAndIDNonCanceled(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	key, err := s.GetByIDNonCanceled(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !key.IsOwnedBy(userID) {
		return nil, sentinel.ErrNotFound
	}
	return key, nil
}

func (s *KeyStore) GetByValueNonCanceled(_ context.Context, value string) ([]*models.Key, error) {
	return s.filter(func(k *models.Key) bool {
		return !k.IsCanceled() && k.ValueOrEmpty() == value
	}, byCreatedAt), nil
}

func (s *KeyStore) GetByOwnerAndValueNonCanceled(_ context.Context, userID id.UserID, value string) (*models.Key, error) {
	found := s.filter(func(k *models.Key) bool {
		return !k.IsCanceled() && k.IsOwnedBy(userID) && k.ValueOrEmpty() == value
	}, byCreatedAt)
	if len(found) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return found[0], nil
}

func (s *KeyStore) CountByOwnerNonCanceled(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, k := range s.keys {
		if k.IsOwnedBy(userID) && !k.IsCanceled() {
			n++
		}
	}
	return n, nil
}

func (s *KeyStore) GetByState(_ context.Context, state models.KeyState, page ports.Page) ([]*models.Key, error) {
	found := s.filter(func(k *models.Key) bool { return k.State == state }, byCreatedAt)
	return paginate(found, page), nil
}

func (s *KeyStore) GetByStaleUpdatedAtAndStates(_ context.Context, before time.Time, states []models.KeyState, page ports.Page) ([]*models.Key, error) {
	found := s.filter(func(k *models.Key) bool {
		return k.UpdatedAt.Before(before) && k.State.In(states...)
	}, byUpdatedAt)
	return paginate(found, page), nil
}

func (s *KeyStore) GetByClaimID(_ context.Context, claimID id.ClaimID) (*models.Key, error) {
	found := s.filter(func(k *models.Key) bool {
		return k.ClaimID != nil && *k.ClaimID == claimID
	}, byCreatedAt)
	if len(found) == 0 {
		return nil, sentinel.ErrNotFound
	}
	// The most recent claimant wins when a claim id was reused.
	return found[len(found)-1], nil
}

func (s *KeyStore) Create(ctx context.Context, key *models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key.ID]; exists {
		return sentinel.ErrConflict
	}
	key.Version = 1
	s.keys[key.ID] = key.Clone()
	onRollback(ctx, func() { s.restore(key.ID, nil) })
	return nil
}

func (s *KeyStore) Update(ctx context.Context, key *models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.keys[key.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != key.Version {
		return sentinel.ErrConflict
	}
	key.Version++
	s.keys[key.ID] = key.Clone()
	onRollback(ctx, func() { s.restore(key.ID, stored) })
	return nil
}

// restore puts back a row as it was before a rolled back write; nil removes it.
func (s *KeyStore) restore(keyID id.KeyID, prev *models.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev == nil {
		delete(s.keys, keyID)
		return
	}
	s.keys[keyID] = prev
}

func (s *KeyStore) PaginatedListByOwnerNonCanceled(_ context.Context, userID id.UserID, page ports.Page) (*ports.KeyPage, error) {
	found := s.filter(func(k *models.Key) bool {
		return k.IsOwnedBy(userID) && !k.IsCanceled()
	}, byCreatedAt)
	items := paginate(found, page)
	return &ports.KeyPage{
		Items:   items,
		Total:   len(found),
		HasNext: page.Offset()+len(items) < len(found),
	}, nil
}

func (s *KeyStore) filter(match func(*models.Key) bool, less func(a, b *models.Key) bool) []*models.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Key
	for _, k := range s.keys {
		if match(k) {
			out = append(out, k.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byCreatedAt(a, b *models.Key) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func byUpdatedAt(a, b *models.Key) bool {
	if a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.UpdatedAt.Before(b.UpdatedAt)
}

func paginate[T any](items []T, page ports.Page) []T {
	if page.Size <= 0 {
		return items
	}
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := min(start+page.Size, len(items))
	return items[start:end]
}
