// Package ports defines the interfaces the pix key use cases consume.
//
// Stores return sentinel.ErrNotFound for missing rows and sentinel.ErrConflict
// for duplicate creates and stale versioned updates.
package ports

import (
	"context"
	"time"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
)

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type KeyPage struct {
	Items   []*models.Key
	Total   int
	HasNext bool
}

type KeyRepository interface {
	GetByID(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	GetByIDNonCanceled(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	GetByOwnerAndIDNonCanceled(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error)

	// GetByValueNonCanceled returns every non-canceled key holding value,
	// oldest first. More than two results is a data-integrity fault.
	GetByValueNonCanceled(ctx context.Context, value string) ([]*models.Key, error)
	GetByOwnerAndValueNonCanceled(ctx context.Context, userID id.UserID, value string) (*models.Key, error)
	CountByOwnerNonCanceled(ctx context.Context, userID id.UserID) (int, error)
	GetByState(ctx context.Context, state models.KeyState, page Page) ([]*models.Key, error)

	// GetByStaleUpdatedAtAndStates pages through keys in states whose
	// UpdatedAt is strictly before before, ordered by UpdatedAt then ID.
	GetByStaleUpdatedAtAndStates(ctx context.Context, before time.Time, states []models.KeyState, page Page) ([]*models.Key, error)
	GetByClaimID(ctx context.Context, claimID id.ClaimID) (*models.Key, error)
	Create(ctx context.Context, key *models.Key) error

	// Update persists key when its Version matches the stored row and
	// increments key.Version on success.
	Update(ctx context.Context, key *models.Key) error
	PaginatedListByOwnerNonCanceled(ctx context.Context, userID id.UserID, page Page) (*KeyPage, error)
}

type ClaimRepository interface {
	GetByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	// GetByIDOpenedBefore returns sentinel.ErrNotFound when the claim does
	// not exist or was opened at or after before.
	GetByIDOpenedBefore(ctx context.Context, claimID id.ClaimID, before time.Time) (*models.Claim, error)
	Create(ctx context.Context, claim *models.Claim) error
	Update(ctx context.Context, claim *models.Claim) error
}

type KeyHistoryRepository interface {
	Create(ctx context.Context, entry *models.KeyHistory) error
	ListByKeyID(ctx context.Context, keyID id.KeyID) ([]*models.KeyHistory, error)
}

type KeyVerificationRepository interface {
	Create(ctx context.Context, v *models.KeyVerification) error
	CountFailedSince(ctx context.Context, keyID id.KeyID, since time.Time) (int, error)
}

type DecodeLimitRepository interface {
	GetByUserID(ctx context.Context, userID id.UserID) (*models.UserDecodeLimit, error)
	Create(ctx context.Context, limit *models.UserDecodeLimit) error
	Update(ctx context.Context, limit *models.UserDecodeLimit) error
}

type DecodedKeyRepository interface {
	GetByID(ctx context.Context, decodedID id.DecodedKeyID) (*models.DecodedKey, error)
	Create(ctx context.Context, decoded *models.DecodedKey) error
	Update(ctx context.Context, decoded *models.DecodedKey) error
}

// DecodedKeyCache holds recent registry decode results by content hash.
type DecodedKeyCache interface {
	Get(ctx context.Context, hash string) (*models.DecodeResult, bool, error)
	Set(ctx context.Context, hash string, result *models.DecodeResult, ttl time.Duration) error
}

// Transactor runs fn inside a transaction carried by the context passed to fn.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes a named job across replicas.
type Locker interface {
	// TryLock returns a release func, or sentinel.ErrLockHeld.
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}
