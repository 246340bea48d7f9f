package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
)

//go:generate mockgen -source=registry.go -destination=mocks/registry_mock.go -package=mocks

// RegistryGateway is the boundary to the national key directory.
type RegistryGateway interface {
	CreateKey(ctx context.Context, req CreateKeyRequest) (*RegisteredKey, error)
	DeleteKey(ctx context.Context, req DeleteKeyRequest) error
	CreateOwnershipClaim(ctx context.Context, req ClaimRequest) (*models.Claim, error)
	CreatePortabilityClaim(ctx context.Context, req ClaimRequest) (*models.Claim, error)
	CancelOwnershipClaim(ctx context.Context, req ClaimActionRequest) (*models.Claim, error)
	CancelPortabilityClaim(ctx context.Context, req ClaimActionRequest) (*models.Claim, error)
	ConfirmPortabilityClaim(ctx context.Context, req ClaimActionRequest) (*models.Claim, error)
	CloseClaim(ctx context.Context, req ClaimActionRequest) (*models.Claim, error)
	DenyClaim(ctx context.Context, req ClaimActionRequest) (*models.Claim, error)
	FinishClaim(ctx context.Context, req ClaimActionRequest) (*models.Claim, error)
	ListClaims(ctx context.Context, req ListClaimsRequest) (*ClaimList, error)
	DecodeKey(ctx context.Context, req DecodeKeyRequest) (*models.DecodeResult, error)
}

type CreateKeyRequest struct {
	KeyID     id.KeyID       `json:"key_id"`
	Type      models.KeyType `json:"type"`
	Value     string         `json:"value,omitempty"`
	Owner     models.Owner   `json:"owner"`
	Account   models.Account `json:"account"`
	RequestID string         `json:"request_id,omitempty"`
}

type RegisteredKey struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type DeleteKeyRequest struct {
	Value  string         `json:"value"`
	Type   models.KeyType `json:"type"`
	Reason string         `json:"reason"`
}

type ClaimRequest struct {
	KeyID    id.KeyID       `json:"key_id"`
	KeyType  models.KeyType `json:"key_type"`
	KeyValue string         `json:"key_value"`
	Owner    models.Owner   `json:"owner"`
	Account  models.Account `json:"account"`
}

type ClaimActionRequest struct {
	ClaimID  id.ClaimID `json:"claim_id"`
	Document string     `json:"document,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

type ListClaimsRequest struct {
	Page int       `json:"page"`
	Size int       `json:"size"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type ClaimList struct {
	Items   []*models.Claim `json:"items"`
	HasNext bool            `json:"has_next"`
}

type DecodeKeyRequest struct {
	Value             string         `json:"value"`
	Type              models.KeyType `json:"type"`
	RequesterDocument string         `json:"requester_document"`
}

// RegistryErrorKind is the normalized failure taxonomy of the registry.
type RegistryErrorKind string

const (
	RegistryOffline            RegistryErrorKind = "offline"
	RegistryOwnedByThirdPerson RegistryErrorKind = "owned_by_third_person"
	RegistryOwnedBySamePerson  RegistryErrorKind = "owned_by_same_person"
	RegistryLockedByClaim      RegistryErrorKind = "locked_by_claim"
	RegistryDuplicate          RegistryErrorKind = "duplicate"
	RegistryMaxKeysReached     RegistryErrorKind = "max_keys_reached"
	RegistryOperationTimeout   RegistryErrorKind = "operation_timeout"
	RegistryInvalidFormat      RegistryErrorKind = "invalid_format"
	RegistryNotFound           RegistryErrorKind = "not_found"
)

// RegistryError wraps a registry failure with its kind.
type RegistryError struct {
	Kind       RegistryErrorKind
	Op         string
	Message    string
	Underlying error
}

func (e *RegistryError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("registry %s [%s]: %s: %v", e.Op, e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("registry %s [%s]: %s", e.Op, e.Kind, e.Message)
}

func (e *RegistryError) Unwrap() error {
	return e.Underlying
}

// Retryable reports whether the same call may succeed later.
func (e *RegistryError) Retryable() bool {
	return e.Kind == RegistryOffline || e.Kind == RegistryOperationTimeout || e.Kind == RegistryLockedByClaim
}

func NewRegistryError(kind RegistryErrorKind, op, message string, underlying error) *RegistryError {
	return &RegistryError{Kind: kind, Op: op, Message: message, Underlying: underlying}
}

// IsRegistryError reports whether err carries a registry error of kind.
func IsRegistryError(err error, kind RegistryErrorKind) bool {
	k, ok := RegistryErrorKindOf(err)
	return ok && k == kind
}

func RegistryErrorKindOf(err error) (RegistryErrorKind, bool) {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}
