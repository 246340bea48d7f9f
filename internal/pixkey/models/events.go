package models

import (
	"time"

	id "pixkeys/pkg/domain"
)

// KeyEvent is fired whenever a key enters a state.
type KeyEvent struct {
	Name       string    `json:"name"`
	KeyID      id.KeyID  `json:"key_id"`
	UserID     id.UserID `json:"user_id"`
	State      KeyState  `json:"state"`
	Previous   KeyState  `json:"previous,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewKeyEvent(key *Key, previous KeyState, reason string, now time.Time) KeyEvent {
	return KeyEvent{
		Name:       key.State.EventName(),
		KeyID:      key.ID,
		UserID:     key.UserID,
		State:      key.State,
		Previous:   previous,
		Reason:     reason,
		OccurredAt: now,
	}
}

// ExpiredEventName is the event a reconciliation job fires for a key stuck
// in state past its timeout.
func ExpiredEventName(state KeyState) string {
	return state.EventName() + ".expired"
}

// ExpiredEvent signals that a key sat in a transient state past its timeout.
type ExpiredEvent struct {
	Name       string    `json:"name"`
	KeyID      id.KeyID  `json:"key_id"`
	State      KeyState  `json:"state"`
	UpdatedAt  time.Time `json:"updated_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ClaimReadyEvent signals that the registry reported a new claim status.
type ClaimReadyEvent struct {
	ClaimID       id.ClaimID    `json:"claim_id"`
	KeyValue      string        `json:"key_value"`
	Kind          ClaimKind     `json:"kind"`
	Status        ClaimStatus   `json:"status"`
	Previous      ClaimStatus   `json:"previous,omitempty"`
	Participation Participation `json:"participation"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// DecodedKeyEvent is fired on decoded key pending/confirmed/error.
type DecodedKeyEvent struct {
	Name         string          `json:"name"`
	DecodedKeyID id.DecodedKeyID `json:"decoded_key_id"`
	UserID       id.UserID       `json:"user_id"`
	State        DecodedKeyState `json:"state"`
	KeyType      KeyType         `json:"key_type"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// KeyHolderConflict describes more than two non-canceled keys sharing one value.
type KeyHolderConflict struct {
	KeyValue   string     `json:"key_value"`
	KeyIDs     []id.KeyID `json:"key_ids"`
	DetectedBy string     `json:"detected_by"`
	OccurredAt time.Time  `json:"occurred_at"`
}
