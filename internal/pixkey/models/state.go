package models

import "strings"

// KeyState is the lifecycle state of a pix key.
type KeyState string

const (
	StatePending      KeyState = "PENDING"
	StateConfirmed    KeyState = "CONFIRMED"
	StateNotConfirmed KeyState = "NOT_CONFIRMED"
	StateReady        KeyState = "READY"
	StateAddKeyReady  KeyState = "ADD_KEY_READY"
	StateError        KeyState = "ERROR"
	StateDeleting     KeyState = "DELETING"
	StateDeleted      KeyState = "DELETED"
	StateCanceled     KeyState = "CANCELED"

	StateOwnershipPending   KeyState = "OWNERSHIP_PENDING"
	StateOwnershipOpened    KeyState = "OWNERSHIP_OPENED"
	StateOwnershipStarted   KeyState = "OWNERSHIP_STARTED"
	StateOwnershipWaiting   KeyState = "OWNERSHIP_WAITING"
	StateOwnershipConfirmed KeyState = "OWNERSHIP_CONFIRMED"
	StateOwnershipReady     KeyState = "OWNERSHIP_READY"
	StateOwnershipCanceling KeyState = "OWNERSHIP_CANCELING"
	StateOwnershipCanceled  KeyState = "OWNERSHIP_CANCELED"

	StatePortabilityPending   KeyState = "PORTABILITY_PENDING"
	StatePortabilityOpened    KeyState = "PORTABILITY_OPENED"
	StatePortabilityStarted   KeyState = "PORTABILITY_STARTED"
	StatePortabilityConfirmed KeyState = "PORTABILITY_CONFIRMED"
	StatePortabilityReady     KeyState = "PORTABILITY_READY"
	StatePortabilityCanceling KeyState = "PORTABILITY_CANCELING"
	StatePortabilityCanceled  KeyState = "PORTABILITY_CANCELED"

	StatePortabilityRequestPending        KeyState = "PORTABILITY_REQUEST_PENDING"
	StatePortabilityRequestConfirmOpened  KeyState = "PORTABILITY_REQUEST_CONFIRM_OPENED"
	StatePortabilityRequestConfirmStarted KeyState = "PORTABILITY_REQUEST_CONFIRM_STARTED"
	StatePortabilityRequestCancelOpened   KeyState = "PORTABILITY_REQUEST_CANCEL_OPENED"
	StatePortabilityRequestCancelStarted  KeyState = "PORTABILITY_REQUEST_CANCEL_STARTED"
	StatePortabilityRequestAutoConfirmed  KeyState = "PORTABILITY_REQUEST_AUTO_CONFIRMED"

	StateClaimPending      KeyState = "CLAIM_PENDING"
	StateClaimNotConfirmed KeyState = "CLAIM_NOT_CONFIRMED"
	StateClaimDenied       KeyState = "CLAIM_DENIED"
	StateClaimClosing      KeyState = "CLAIM_CLOSING"
	StateClaimClosed       KeyState = "CLAIM_CLOSED"
)

// AllStates lists every state in declaration order.
var AllStates = []KeyState{
	StatePending, StateConfirmed, StateNotConfirmed, StateReady, StateAddKeyReady,
	StateError, StateDeleting, StateDeleted, StateCanceled,
	StateOwnershipPending, StateOwnershipOpened, StateOwnershipStarted, StateOwnershipWaiting,
	StateOwnershipConfirmed, StateOwnershipReady, StateOwnershipCanceling, StateOwnershipCanceled,
	StatePortabilityPending, StatePortabilityOpened, StatePortabilityStarted, StatePortabilityConfirmed,
	StatePortabilityReady, StatePortabilityCanceling, StatePortabilityCanceled,
	StatePortabilityRequestPending, StatePortabilityRequestConfirmOpened, StatePortabilityRequestConfirmStarted,
	StatePortabilityRequestCancelOpened, StatePortabilityRequestCancelStarted, StatePortabilityRequestAutoConfirmed,
	StateClaimPending, StateClaimNotConfirmed, StateClaimDenied, StateClaimClosing, StateClaimClosed,
}

// CanceledStates are excluded from every non-canceled lookup.
var CanceledStates = []KeyState{
	StateCanceled,
	StateDeleted,
	StateNotConfirmed,
	StateOwnershipCanceled,
	StatePortabilityCanceled,
	StateClaimClosed,
	StatePortabilityRequestAutoConfirmed,
}

var ReadyStates = []KeyState{
	StateReady,
	StateAddKeyReady,
	StateOwnershipReady,
	StatePortabilityReady,
}

// dismissTargets maps dead-end states to the state Dismiss recovers them to.
var dismissTargets = map[KeyState]KeyState{
	StateOwnershipCanceled:               StateCanceled,
	StatePortabilityCanceled:             StateCanceled,
	StateClaimClosed:                     StateCanceled,
	StatePortabilityRequestAutoConfirmed: StateCanceled,
	StatePortabilityReady:                StateReady,
	StateClaimDenied:                     StateReady,
	StateClaimNotConfirmed:               StateClaimPending,
}

func (s KeyState) String() string {
	return string(s)
}

func (s KeyState) IsValid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

func (s KeyState) IsCanceled() bool {
	return s.In(CanceledStates...)
}

func (s KeyState) IsReady() bool {
	return s.In(ReadyStates...)
}

func (s KeyState) In(states ...KeyState) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

// DismissTarget returns the recovery state for s, if s is dismissable.
func (s KeyState) DismissTarget() (KeyState, bool) {
	t, ok := dismissTargets[s]
	return t, ok
}

// EventName is the topic suffix used for the event fired on entering s,
// e.g. "key.ownership_opened".
func (s KeyState) EventName() string {
	return "key." + strings.ToLower(string(s))
}
