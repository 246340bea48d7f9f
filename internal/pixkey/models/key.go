package models

import (
	"time"

	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
)

type KeyType string

const (
	KeyTypeCPF   KeyType = "CPF"
	KeyTypeCNPJ  KeyType = "CNPJ"
	KeyTypeEmail KeyType = "EMAIL"
	KeyTypePhone KeyType = "PHONE"
	KeyTypeEVP   KeyType = "EVP"
)

func (t KeyType) IsValid() bool {
	switch t {
	case KeyTypeCPF, KeyTypeCNPJ, KeyTypeEmail, KeyTypePhone, KeyTypeEVP:
		return true
	}
	return false
}

// IsDocument reports whether the key value is the owner's tax document.
func (t KeyType) IsDocument() bool {
	return t == KeyTypeCPF || t == KeyTypeCNPJ
}

// RequiresCode reports whether creating the key needs an ownership code.
func (t KeyType) RequiresCode() bool {
	return t == KeyTypeEmail || t == KeyTypePhone
}

type PersonType string

const (
	NaturalPerson PersonType = "NATURAL_PERSON"
	LegalPerson   PersonType = "LEGAL_PERSON"
)

func (p PersonType) IsValid() bool {
	return p == NaturalPerson || p == LegalPerson
}

// Failure is the last registry rejection recorded on a key in ERROR.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Account is the bank account a key routes payments to.
type Account struct {
	ISPB          string    `json:"ispb"`
	Branch        string    `json:"branch"`
	AccountNumber string    `json:"account_number"`
	AccountType   string    `json:"account_type"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Owner identifies the person a key belongs to.
type Owner struct {
	PersonType PersonType `json:"person_type"`
	Document   string     `json:"document"`
	Name       string     `json:"name"`
	TradeName  string     `json:"trade_name,omitempty"`
}

// Key is the pix key aggregate.
//
// Invariants:
//   - Value is nil only for EVP keys the registry has not assigned yet
//   - State changes only through Transition, which stamps UpdatedAt and the
//     canceled/deleted timestamps
//   - Version increases by one on every persisted update
type Key struct {
	ID              id.KeyID    `json:"id"`
	UserID          id.UserID   `json:"user_id"`
	Value           *string     `json:"value,omitempty"`
	Type            KeyType     `json:"type"`
	State           KeyState    `json:"state"`
	Owner           Owner       `json:"owner"`
	Account         Account     `json:"account"`
	Code            string      `json:"-"`
	CodeGeneratedAt *time.Time  `json:"code_generated_at,omitempty"`
	ClaimID         *id.ClaimID `json:"claim_id,omitempty"`
	CanceledAt      *time.Time  `json:"canceled_at,omitempty"`
	DeletedAt       *time.Time  `json:"deleted_at,omitempty"`
	DeletedReason   string      `json:"deleted_reason,omitempty"`
	Failure         *Failure    `json:"failure,omitempty"`
	Version         int         `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewKey builds a key in its initial state for the given type.
func NewKey(keyID id.KeyID, userID id.UserID, keyType KeyType, value *string, owner Owner, account Account, now time.Time) (*Key, error) {
	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key id is required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	if !keyType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown key type")
	}
	if keyType != KeyTypeEVP && (value == nil || *value == "") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "key value is required")
	}
	state := StateConfirmed
	if keyType.RequiresCode() {
		state = StatePending
	}
	return &Key{
		ID:        keyID,
		UserID:    userID,
		Value:     value,
		Type:      keyType,
		State:     state,
		Owner:     owner,
		Account:   account,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValueOrEmpty returns the key value or "" for unassigned EVP keys.
func (k *Key) ValueOrEmpty() string {
	if k.Value == nil {
		return ""
	}
	return *k.Value
}

func (k *Key) IsOwnedBy(userID id.UserID) bool {
	return k.UserID == userID
}

func (k *Key) IsCanceled() bool {
	return k.State.IsCanceled()
}

func (k *Key) IsReady() bool {
	return k.State.IsReady()
}

// CanSendCode reports whether send/verify/cancel code actions are legal.
func (k *Key) CanSendCode() bool {
	return k.Type.RequiresCode() && k.State.In(StatePending, StateClaimPending)
}

func (k *Key) CanDelete() bool {
	return k.IsReady() || k.State == StateError
}

// SetCode attaches a fresh verification code. Failed attempts are counted
// from CodeGeneratedAt, so a new code starts a new retry window.
func (k *Key) SetCode(code string, now time.Time) {
	k.Code = code
	k.CodeGeneratedAt = &now
}

// Transition moves the key to state and stamps the lifecycle timestamps.
func (k *Key) Transition(state KeyState, now time.Time) {
	k.State = state
	k.UpdatedAt = now
	if state.IsCanceled() && k.CanceledAt == nil {
		k.CanceledAt = &now
	}
	if state == StateDeleted && k.DeletedAt == nil {
		k.DeletedAt = &now
	}
	if state.IsReady() {
		k.Failure = nil
	}
}

// Fail moves the key to ERROR recording the registry rejection.
func (k *Key) Fail(failure Failure, now time.Time) {
	k.Failure = &failure
	k.Transition(StateError, now)
}

// Clone returns a deep copy safe to mutate without touching the original.
func (k *Key) Clone() *Key {
	if k == nil {
		return nil
	}
	c := *k
	if k.Value != nil {
		v := *k.Value
		c.Value = &v
	}
	c.CodeGeneratedAt = cloneTime(k.CodeGeneratedAt)
	c.CanceledAt = cloneTime(k.CanceledAt)
	c.DeletedAt = cloneTime(k.DeletedAt)
	if k.ClaimID != nil {
		cid := *k.ClaimID
		c.ClaimID = &cid
	}
	if k.Failure != nil {
		f := *k.Failure
		c.Failure = &f
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StringPtr is a small helper for optional key values.
func StringPtr(s string) *string {
	return &s
}
