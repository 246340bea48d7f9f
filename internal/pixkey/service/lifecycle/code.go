package lifecycle

import (
	"context"
	"crypto/subtle"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

// SendCode delivers the key's verification code to the address it names,
// generating one when the key has none.
func (s *Service) SendCode(ctx context.Context, userID id.UserID, keyID id.KeyID) error {
	var key *models.Key
	err := s.machine.RunInTx(ctx, keyID.String(), func(ctx context.Context) error {
		loaded, err := s.machine.Load(ctx, keyID, &userID)
		if err != nil {
			return err
		}
		if !loaded.CanSendCode() {
			return keystate.InvalidState("send code", loaded.State)
		}
		if loaded.Code == "" {
			code, err := models.NewVerificationCode()
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
			}
			loaded.SetCode(code, requestcontext.Now(ctx))
			if err := s.keys.Update(ctx, loaded); err != nil {
				return keystate.WrapStoreErr(err, "key")
			}
		}
		key = loaded
		return nil
	})
	if err != nil {
		return err
	}

	if key.Type == models.KeyTypeEmail {
		err = s.notifier.SendEmailCode(ctx, key.ValueOrEmpty(), key.Code)
	} else {
		err = s.notifier.SendSMSCode(ctx, key.ValueOrEmpty(), key.Code)
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to deliver verification code")
	}
	s.logger.InfoContext(ctx, "verification code sent",
		"key_id", keyID.String(),
		"key_type", string(key.Type),
	)
	return nil
}

// VerifyCode checks code against the key. A wrong code is recorded; once
// the failures since the code was issued reach the attempt limit the key
// moves to its not-confirmed state and is returned without error.
func (s *Service) VerifyCode(ctx context.Context, userID id.UserID, keyID id.KeyID, code string) (*models.Key, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "code is required")
	}
	ctx = requestcontext.WithKeyID(ctx, keyID)

	var result *models.Key
	var rejected bool
	err := s.machine.RunInTx(ctx, keyID.String(), func(ctx context.Context) error {
		key, err := s.machine.Load(ctx, keyID, &userID)
		if err != nil {
			return err
		}
		if !key.CanSendCode() {
			return keystate.InvalidState("verify code", key.State)
		}
		now := requestcontext.Now(ctx)

		if key.Code != "" && subtle.ConstantTimeCompare([]byte(code), []byte(key.Code)) == 1 {
			if err := s.verifications.Create(ctx, models.NewKeyVerification(keyID, models.VerificationOK, now)); err != nil {
				return keystate.WrapStoreErr(err, "key verification")
			}
			target := models.StateConfirmed
			if key.State == models.StateClaimPending {
				target = models.StateClaimDenied
			}
			if err := s.machine.Apply(ctx, key, target, "code verified"); err != nil {
				return err
			}
			result = key
			return nil
		}

		if err := s.verifications.Create(ctx, models.NewKeyVerification(keyID, models.VerificationFailed, now)); err != nil {
			return keystate.WrapStoreErr(err, "key verification")
		}
		since := key.CreatedAt
		if key.CodeGeneratedAt != nil {
			since = *key.CodeGeneratedAt
		}
		failed, err := s.verifications.CountFailedSince(ctx, keyID, since)
		if err != nil {
			return keystate.WrapStoreErr(err, "key verification")
		}
		if failed < s.config.Lifecycle.MaxVerifyAttempts {
			rejected = true
			return nil
		}
		target := models.StateNotConfirmed
		if key.State == models.StateClaimPending {
			target = models.StateClaimNotConfirmed
		}
		if err := s.machine.Apply(ctx, key, target, "verification attempts exhausted"); err != nil {
			return err
		}
		result = key
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejected {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid code")
	}
	return result, nil
}

// CancelCode abandons verification. A pending key is canceled; a donor key
// in CLAIM_PENDING gives itself up to the claimant.
func (s *Service) CancelCode(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "cancel code",
		From:   []models.KeyState{models.StatePending, models.StateClaimPending},
		To:     models.StateCanceled,
		Done:   []models.KeyState{models.StateClaimClosing},
		Owner:  &userID,
		Reason: "code canceled",
		Run: func(_ context.Context, key *models.Key) (models.KeyState, error) {
			if !key.CanSendCode() {
				return "", keystate.InvalidState("cancel code", key.State)
			}
			if key.State == models.StateClaimPending {
				return models.StateClaimClosing, nil
			}
			return models.StateCanceled, nil
		},
	})
}
