package models

import (
	"time"

	id "pixkeys/pkg/domain"
)

type VerificationState string

const (
	VerificationOK     VerificationState = "OK"
	VerificationFailed VerificationState = "FAILED"
)

// KeyVerification records one code verification attempt.
type KeyVerification struct {
	ID        id.VerificationID `json:"id"`
	KeyID     id.KeyID          `json:"key_id"`
	State     VerificationState `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewKeyVerification(keyID id.KeyID, state VerificationState, now time.Time) *KeyVerification {
	return &KeyVerification{
		ID:        id.NewVerificationID(),
		KeyID:     keyID,
		State:     state,
		CreatedAt: now,
	}
}

// KeyHistory is an append-only entry for every state a key passed through.
type KeyHistory struct {
	ID        id.HistoryID `json:"id"`
	KeyID     id.KeyID     `json:"key_id"`
	State     KeyState     `json:"state"`
	Snapshot  Key          `json:"snapshot"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewKeyHistory(key *Key, now time.Time) *KeyHistory {
	return &KeyHistory{
		ID:        id.NewHistoryID(),
		KeyID:     key.ID,
		State:     key.State,
		Snapshot:  *key.Clone(),
		CreatedAt: now,
	}
}
