// Package domain holds the typed identifiers shared by every pix key package.
//
// Each identifier is a distinct named type over uuid.UUID so a KeyID can never
// be passed where a UserID is expected. Parse functions are the only way in
// from untrusted input (message payloads, registry responses).
package domain

import (
	"github.com/google/uuid"

	dErrors "pixkeys/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	KeyID          uuid.UUID
	ClaimID        uuid.UUID
	DecodedKeyID   uuid.UUID
	VerificationID uuid.UUID
	HistoryID      uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id KeyID) String() string          { return uuid.UUID(id).String() }
func (id ClaimID) String() string        { return uuid.UUID(id).String() }
func (id DecodedKeyID) String() string   { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id HistoryID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id KeyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id DecodedKeyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps identifiers as canonical uuid strings in JSON.

func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id KeyID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id ClaimID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id DecodedKeyID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id VerificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id HistoryID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *KeyID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ClaimID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DecodedKeyID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *VerificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *HistoryID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseKeyID(s string) (KeyID, error) {
	u, err := parseUUID(s, "key ID")
	return KeyID(u), err
}

func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s, "claim ID")
	return ClaimID(u), err
}

func ParseDecodedKeyID(s string) (DecodedKeyID, error) {
	u, err := parseUUID(s, "decoded key ID")
	return DecodedKeyID(u), err
}

// NewKeyID, NewVerificationID and NewHistoryID mint fresh random identifiers
// for rows the service creates itself.
func NewKeyID() KeyID                   { return KeyID(uuid.New()) }
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }
func NewHistoryID() HistoryID           { return HistoryID(uuid.New()) }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
