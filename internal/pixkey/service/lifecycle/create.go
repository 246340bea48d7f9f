package lifecycle

import (
	"context"
	"errors"
	"strings"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/requestcontext"
)

type CreateRequest struct {
	ID     id.KeyID
	UserID id.UserID
	Type   models.KeyType
	Value  *string
}

// Create registers a new key locally. It is idempotent by request id: a
// live key with the same id is returned unchanged to its owner.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Key, error) {
	if req.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "key id is required")
	}
	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}

	existing, err := s.keys.GetByIDNonCanceled(ctx, req.ID)
	if err == nil {
		if !existing.IsOwnedBy(req.UserID) {
			return nil, dErrors.New(dErrors.CodeForbidden, "key belongs to another user")
		}
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, keystate.WrapStoreErr(err, "key")
	}

	value := normalizeValue(req.Type, req.Value)
	if err := models.ValidateKeyValue(req.Type, value); err != nil {
		return nil, err
	}

	user, err := s.resolveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkDocumentKey(req.Type, value, user); err != nil {
		return nil, err
	}
	onboarding, err := s.users.GetOnboarding(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "user onboarding is not complete")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load onboarding")
	}

	now := requestcontext.Now(ctx)
	key, err := models.NewKey(req.ID, req.UserID, req.Type, value, ownerOf(user), models.Account{
		ISPB:          s.config.ISPB,
		Branch:        onboarding.Branch,
		AccountNumber: onboarding.AccountNumber,
		AccountType:   onboarding.AccountType,
		OpenedAt:      onboarding.CompletedAt,
	}, now)
	if err != nil {
		return nil, err
	}
	if req.Type.RequiresCode() {
		code, err := models.NewVerificationCode()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
		}
		key.SetCode(code, now)
	}

	// The owner's partition serializes creates for one user, so the capacity
	// and duplicate checks hold until the key is recorded.
	var result *models.Key
	err = s.machine.RunInTx(ctx, "user:"+req.UserID.String(), func(ctx context.Context) error {
		existing, err := s.keys.GetByIDNonCanceled(ctx, req.ID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return keystate.WrapStoreErr(err, "key")
		}
		if err := s.checkCapacity(ctx, req.UserID, user.PersonType, value); err != nil {
			return err
		}
		if err := s.machine.Record(ctx, key); err != nil {
			return err
		}
		result = key
		return nil
	})
	if dErrors.HasCode(err, dErrors.CodeConcurrentModification) {
		// Another user's request claimed the same key id.
		return nil, dErrors.New(dErrors.CodeConflict, "key id already used")
	}
	if err != nil {
		return nil, err
	}
	if !result.IsOwnedBy(req.UserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "key belongs to another user")
	}
	return result, nil
}

// checkCapacity enforces the per-owner key limit and refuses a value the
// owner already holds.
func (s *Service) checkCapacity(ctx context.Context, userID id.UserID, personType models.PersonType, value *string) error {
	count, err := s.keys.CountByOwnerNonCanceled(ctx, userID)
	if err != nil {
		return keystate.WrapStoreErr(err, "key")
	}
	if count >= s.config.Lifecycle.MaxKeys(personType) {
		return dErrors.New(dErrors.CodeConflict, "max keys reached")
	}
	if value == nil {
		return nil
	}
	_, err = s.keys.GetByOwnerAndValueNonCanceled(ctx, userID, *value)
	if err == nil {
		return dErrors.New(dErrors.CodeConflict, "key already registered")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return keystate.WrapStoreErr(err, "key")
	}
	return nil
}

func (s *Service) resolveUser(ctx context.Context, userID id.UserID) (*ports.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "user is not active")
	}
	return user, nil
}

func checkDocumentKey(keyType models.KeyType, value *string, user *ports.User) error {
	switch keyType {
	case models.KeyTypeCPF:
		if user.PersonType != models.NaturalPerson {
			return dErrors.New(dErrors.CodeValidation, "CPF keys are only available to natural persons")
		}
	case models.KeyTypeCNPJ:
		if user.PersonType != models.LegalPerson {
			return dErrors.New(dErrors.CodeValidation, "CNPJ keys are only available to legal persons")
		}
	default:
		return nil
	}
	if *value != user.Document {
		return dErrors.New(dErrors.CodeValidation, "document key must match the owner's document")
	}
	return nil
}

func normalizeValue(keyType models.KeyType, value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if keyType == models.KeyTypeEmail {
		v = strings.ToLower(v)
	}
	if v == "" && keyType == models.KeyTypeEVP {
		return nil
	}
	return &v
}

func ownerOf(user *ports.User) models.Owner {
	return models.Owner{
		PersonType: user.PersonType,
		Document:   user.Document,
		Name:       user.Name,
		TradeName:  user.TradeName,
	}
}
