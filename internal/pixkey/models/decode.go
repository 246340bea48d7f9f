package models

import (
	"time"

	id "pixkeys/pkg/domain"
)

type DecodedKeyState string

const (
	DecodedKeyPending   DecodedKeyState = "PENDING"
	DecodedKeyConfirmed DecodedKeyState = "CONFIRMED"
	DecodedKeyError     DecodedKeyState = "ERROR"
)

func (s DecodedKeyState) EventName() string {
	switch s {
	case DecodedKeyConfirmed:
		return "decoded_key.confirmed"
	case DecodedKeyError:
		return "decoded_key.error"
	default:
		return "decoded_key.pending"
	}
}

// DecodedKey is the account snapshot resolved for one lookup request.
type DecodedKey struct {
	ID         id.DecodedKeyID `json:"id"`
	UserID     id.UserID       `json:"user_id"`
	KeyValue   string          `json:"key_value"`
	KeyType    KeyType         `json:"key_type"`
	State      DecodedKeyState `json:"state"`
	Owner      Owner           `json:"owner"`
	Account    Account         `json:"account"`
	EndToEndID string          `json:"end_to_end_id,omitempty"`
	Local      bool            `json:"local"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DecodeResult is what a lookup resolved to before it is bound to a request.
type DecodeResult struct {
	KeyValue   string  `json:"key_value"`
	KeyType    KeyType `json:"key_type"`
	Owner      Owner   `json:"owner"`
	Account    Account `json:"account"`
	EndToEndID string  `json:"end_to_end_id,omitempty"`
}

func (r DecodeResult) Bind(decodedID id.DecodedKeyID, userID id.UserID, local bool, now time.Time) *DecodedKey {
	return &DecodedKey{
		ID:         decodedID,
		UserID:     userID,
		KeyValue:   r.KeyValue,
		KeyType:    r.KeyType,
		State:      DecodedKeyPending,
		Owner:      r.Owner,
		Account:    r.Account,
		EndToEndID: r.EndToEndID,
		Local:      local,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// BucketPolicy parameterizes the per-user decode budget.
type BucketPolicy struct {
	Ceiling         int
	RefillInterval  time.Duration
	RefillIncrement int
}

// UserDecodeLimit is a user's remaining decode budget.
//
// The budget refills by RefillIncrement for every whole RefillInterval since
// LastDecodedAt and never exceeds the policy ceiling.
type UserDecodeLimit struct {
	UserID        id.UserID `json:"user_id"`
	Limit         int       `json:"limit"`
	LastDecodedAt time.Time `json:"last_decoded_at"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewUserDecodeLimit(userID id.UserID, policy BucketPolicy, now time.Time) *UserDecodeLimit {
	return &UserDecodeLimit{
		UserID:        userID,
		Limit:         policy.Ceiling,
		LastDecodedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Refreshed returns the budget at now including refill, without mutating.
func (l *UserDecodeLimit) Refreshed(policy BucketPolicy, now time.Time) int {
	value := l.Limit
	elapsed := now.Sub(l.LastDecodedAt)
	if elapsed > 0 && policy.RefillInterval > 0 {
		steps := int(elapsed / policy.RefillInterval)
		value += steps * policy.RefillIncrement
	}
	return min(value, policy.Ceiling)
}

// CanAfford reports whether the refilled bucket covers cost at now.
func (l *UserDecodeLimit) CanAfford(policy BucketPolicy, cost int, now time.Time) bool {
	return l.Refreshed(policy, now)-cost >= 0
}

// Apply refills up to now, then adds delta (negative for cost and penalty).
// The result is clamped to [0, ceiling].
func (l *UserDecodeLimit) Apply(policy BucketPolicy, delta int, now time.Time) {
	value := l.Refreshed(policy, now) + delta
	l.Limit = max(0, min(value, policy.Ceiling))
	l.LastDecodedAt = now
	l.UpdatedAt = now
}
