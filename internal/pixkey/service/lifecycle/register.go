package lifecycle

import (
	"context"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
)

// HandleConfirmed registers a confirmed key with the registry and routes
// the outcome: READY, a claim flow, or ERROR.
func (s *Service) HandleConfirmed(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name: "register key",
		From: []models.KeyState{models.StateConfirmed},
		To:   models.StateReady,
		Done: []models.KeyState{
			models.StateOwnershipPending,
			models.StatePortabilityPending,
			models.StateError,
		},
		Reason: "registry registration",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			registered, err := s.registry.CreateKey(ctx, keystate.RegistrationRequest(ctx, key))
			if err == nil {
				if key.Type == models.KeyTypeEVP && registered != nil && registered.Value != "" {
					key.Value = models.StringPtr(registered.Value)
				}
				return models.StateReady, nil
			}
			kind, ok := ports.RegistryErrorKindOf(err)
			if !ok {
				return "", keystate.WrapRegistryErr(err, "create key")
			}
			switch kind {
			case ports.RegistryOwnedByThirdPerson:
				return models.StateOwnershipPending, nil
			case ports.RegistryOwnedBySamePerson:
				return models.StatePortabilityPending, nil
			case ports.RegistryDuplicate:
				return models.StateReady, nil
			case ports.RegistryMaxKeysReached, ports.RegistryInvalidFormat:
				key.Failure = &models.Failure{Code: string(kind), Message: err.Error()}
				return models.StateError, nil
			default:
				return "", keystate.WrapRegistryErr(err, "create key")
			}
		},
	})
}
