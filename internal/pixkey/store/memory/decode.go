package memory

import (
	"context"
	"sync"
	"time"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
)

type DecodeLimitStore struct {
	mu     sync.RWMutex
	limits map[id.UserID]models.UserDecodeLimit
}

func NewDecodeLimitStore() *DecodeLimitStore {
	return &DecodeLimitStore{limits: make(map[id.UserID]models.UserDecodeLimit)}
}

func (s *DecodeLimitStore) GetByUserID(_ context.Context, userID id.UserID) (*models.UserDecodeLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.limits[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &l, nil
}

func (s *DecodeLimitStore) Create(ctx context.Context, limit *models.UserDecodeLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.limits[limit.UserID]; exists {
		return sentinel.ErrConflict
	}
	limit.Version = 1
	s.limits[limit.UserID] = *limit
	userID := limit.UserID
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.limits, userID)
	})
	return nil
}

func (s *DecodeLimitStore) Update(ctx context.Context, limit *models.UserDecodeLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.limits[limit.UserID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != limit.Version {
		return sentinel.ErrConflict
	}
	limit.Version++
	s.limits[limit.UserID] = *limit
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.limits[stored.UserID] = stored
	})
	return nil
}

type DecodedKeyStore struct {
	mu      sync.RWMutex
	decoded map[id.DecodedKeyID]models.DecodedKey
}

func NewDecodedKeyStore() *DecodedKeyStore {
	return &DecodedKeyStore{decoded: make(map[id.DecodedKeyID]models.DecodedKey)}
}

func (s *DecodedKeyStore) GetByID(_ context.Context, decodedID id.DecodedKeyID) (*models.DecodedKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decoded[decodedID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &d, nil
}

func (s *DecodedKeyStore) Create(ctx context.Context, decoded *models.DecodedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decoded[decoded.ID]; exists {
		return sentinel.ErrConflict
	}
	s.decoded[decoded.ID] = *decoded
	decodedID := decoded.ID
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.decoded, decodedID)
	})
	return nil
}

func (s *DecodedKeyStore) Update(ctx context.Context, decoded *models.DecodedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.decoded[decoded.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	s.decoded[decoded.ID] = *decoded
	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.decoded[prev.ID] = prev
	})
	return nil
}

// Len reports how many decoded keys are stored.
func (s *DecodedKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decoded)
}

type cachedResult struct {
	result    models.DecodeResult
	expiresAt time.Time
}

// DecodeCache is a TTL cache of registry decode results.
type DecodeCache struct {
	mu      sync.RWMutex
	entries map[string]cachedResult
	now     func() time.Time
}

func NewDecodeCache() *DecodeCache {
	return &DecodeCache{entries: make(map[string]cachedResult), now: time.Now}
}

// WithClock replaces the cache clock, for tests.
func (c *DecodeCache) WithClock(now func() time.Time) *DecodeCache {
	c.now = now
	return c
}

func (c *DecodeCache) Get(_ context.Context, hash string) (*models.DecodeResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[hash]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	r := e.result
	return &r, true, nil
}

func (c *DecodeCache) Set(_ context.Context, hash string, result *models.DecodeResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = cachedResult{result: *result, expiresAt: c.now().Add(ttl)}
	return nil
}
