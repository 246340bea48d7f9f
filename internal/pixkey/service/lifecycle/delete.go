package lifecycle

import (
	"context"
	"strings"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

var deletableStates = append([]models.KeyState{models.StateError}, models.ReadyStates...)

// Delete starts removing a key; HandleDeleting completes it at the registry.
func (s *Service) Delete(ctx context.Context, userID id.UserID, keyID id.KeyID, reason string) (*models.Key, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "delete key",
		From:   deletableStates,
		To:     models.StateDeleting,
		Done:   []models.KeyState{models.StateDeleted},
		Owner:  &userID,
		Reason: reason,
		Run: func(_ context.Context, key *models.Key) (models.KeyState, error) {
			key.DeletedReason = reason
			return "", nil
		},
	})
}

func (s *Service) HandleDeleting(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "remove key from registry",
		From:   []models.KeyState{models.StateDeleting},
		To:     models.StateDeleted,
		Reason: "registry deletion",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			if key.Value == nil {
				return "", nil
			}
			err := s.registry.DeleteKey(ctx, ports.DeleteKeyRequest{
				Value:  *key.Value,
				Type:   key.Type,
				Reason: key.DeletedReason,
			})
			if err != nil && !ports.IsRegistryError(err, ports.RegistryNotFound) {
				return "", keystate.WrapRegistryErr(err, "delete key")
			}
			return "", nil
		},
	})
}

// Dismiss recovers a key from a dead-end claim outcome. Keys already in a
// recovery state are returned unchanged.
func (s *Service) Dismiss(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	ctx = requestcontext.WithKeyID(ctx, keyID)
	var result *models.Key
	err := s.machine.RunInTx(ctx, keyID.String(), func(ctx context.Context) error {
		key, err := s.machine.Load(ctx, keyID, &userID)
		if err != nil {
			return err
		}
		target, ok := key.State.DismissTarget()
		if !ok {
			if key.State.In(models.StateCanceled, models.StateReady, models.StateClaimPending) {
				result = key
				return nil
			}
			return keystate.InvalidState("dismiss", key.State)
		}
		if target == models.StateClaimPending {
			code, err := models.NewVerificationCode()
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
			}
			key.SetCode(code, requestcontext.Now(ctx))
		}
		if err := s.machine.Apply(ctx, key, target, "dismissed"); err != nil {
			return err
		}
		result = key
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
