package portability

import (
	"context"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

// RequestReceived holds a ready key for an incoming portability request,
// confirming it on the spot when auto approval is on.
func (s *Service) RequestReceived(ctx context.Context, keyID id.KeyID, claimID id.ClaimID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "receive portability request",
		From:   models.ReadyStates,
		To:     models.StatePortabilityRequestPending,
		Done:   []models.KeyState{models.StatePortabilityRequestAutoConfirmed},
		Reason: "portability requested",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			key.ClaimID = &claimID
			if !s.config.AutoApprove {
				return "", nil
			}
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil {
				return "", err
			}
			fetched, err := s.registry.ConfirmPortabilityClaim(ctx, ports.ClaimActionRequest{
				ClaimID:  claimID,
				Document: claim.DocumentOr(key.Owner.Document),
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "confirm portability claim")
			}
			if claim != nil {
				claim.MarkClosed(requestcontext.Now(ctx))
				if err := keystate.UpdateClaim(ctx, s.claims, claim, fetched); err != nil {
					return "", err
				}
			}
			return models.StatePortabilityRequestAutoConfirmed, nil
		},
	})
}

func (s *Service) ApproveConfirm(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, "confirm portability request",
		[]models.KeyState{models.StatePortabilityRequestPending}, models.StatePortabilityRequestConfirmOpened, &userID, "confirmed by owner")
}

// ApproveCancel refuses the request; the reason is sent to the registry.
func (s *Service) ApproveCancel(ctx context.Context, userID id.UserID, keyID id.KeyID, reason string) (*models.Key, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return s.refuse(ctx, keyID, &userID, reason)
}

// HandleRequestExpired refuses a request the owner never answered.
func (s *Service) HandleRequestExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.refuse(ctx, keyID, nil, "expired")
}

func (s *Service) refuse(ctx context.Context, keyID id.KeyID, owner *id.UserID, reason string) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "cancel portability request",
		From:   []models.KeyState{models.StatePortabilityRequestPending},
		To:     models.StatePortabilityRequestCancelOpened,
		Owner:  owner,
		Reason: reason,
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil {
				return "", err
			}
			claim.CancelReason = reason
			return "", keystate.UpdateClaim(ctx, s.claims, claim, nil)
		},
	})
}

func (s *Service) ConfirmOpened(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "confirm portability at registry",
		From:   []models.KeyState{models.StatePortabilityRequestConfirmOpened},
		To:     models.StatePortabilityRequestConfirmStarted,
		Reason: "portability confirmed",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := s.requireClaim(ctx, key)
			if err != nil {
				return "", err
			}
			fetched, err := s.registry.ConfirmPortabilityClaim(ctx, ports.ClaimActionRequest{
				ClaimID:  claim.ID,
				Document: claim.DocumentOr(key.Owner.Document),
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "confirm portability claim")
			}
			return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
		},
	})
}

func (s *Service) CancelOpened(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "cancel portability at registry",
		From:   []models.KeyState{models.StatePortabilityRequestCancelOpened},
		To:     models.StatePortabilityRequestCancelStarted,
		Reason: "portability refused",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := s.requireClaim(ctx, key)
			if err != nil {
				return "", err
			}
			fetched, err := s.registry.CancelPortabilityClaim(ctx, ports.ClaimActionRequest{
				ClaimID:  claim.ID,
				Document: claim.DocumentOr(key.Owner.Document),
				Reason:   claim.CancelReason,
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "cancel portability claim")
			}
			claim.MarkCancelled(claim.CancelReason, requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
		},
	})
}

// ConfirmStarted retires the key: it now lives at the claimant institution.
func (s *Service) ConfirmStarted(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "hand key over",
		From:   []models.KeyState{models.StatePortabilityRequestConfirmStarted},
		To:     models.StateCanceled,
		Reason: "ported out",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil {
				return "", err
			}
			claim.MarkClosed(requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, nil)
		},
	})
}

// CancelStarted keeps the key after the request was refused.
func (s *Service) CancelStarted(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "keep key",
		From:   []models.KeyState{models.StatePortabilityRequestCancelStarted},
		To:     models.StateReady,
		Reason: "portability refused",
		Run: func(_ context.Context, key *models.Key) (models.KeyState, error) {
			key.ClaimID = nil
			return "", nil
		},
	})
}

func (s *Service) requireClaim(ctx context.Context, key *models.Key) (*models.Claim, error) {
	claim, err := keystate.LoadClaim(ctx, s.claims, key)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "portability request has no claim")
	}
	return claim, nil
}
