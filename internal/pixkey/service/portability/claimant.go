package portability

import (
	"context"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/requestcontext"
)

var claimantCancelable = []models.KeyState{
	models.StatePortabilityPending,
	models.StatePortabilityOpened,
	models.StatePortabilityStarted,
	models.StatePortabilityConfirmed,
}

func (s *Service) ApproveStart(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, "approve portability claim",
		[]models.KeyState{models.StatePortabilityPending}, models.StatePortabilityOpened, &userID, "approved by owner")
}

// Opened asks the registry to move the key here.
func (s *Service) Opened(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "open portability claim",
		From:   []models.KeyState{models.StatePortabilityOpened},
		To:     models.StatePortabilityStarted,
		Reason: "portability claim opened",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := s.registry.CreatePortabilityClaim(ctx, ports.ClaimRequest{
				KeyID:    key.ID,
				KeyType:  key.Type,
				KeyValue: key.ValueOrEmpty(),
				Owner:    key.Owner,
				Account:  key.Account,
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "create portability claim")
			}
			claim.OpenedAt = requestcontext.Now(ctx)
			return "", keystate.SaveClaim(ctx, s.claims, key, claim, models.ClaimPortability, models.ParticipationClaimer)
		},
	})
}

// Started completes the claim after the donor confirmed it.
func (s *Service) Started(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "finish portability claim",
		From:   []models.KeyState{models.StatePortabilityStarted},
		To:     models.StatePortabilityConfirmed,
		Reason: "portability confirmed by donor",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil {
				return "", err
			}
			fetched, err := s.registry.FinishClaim(ctx, ports.ClaimActionRequest{ClaimID: claim.ID})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "finish claim")
			}
			claim.MarkResolved(requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
		},
	})
}

func (s *Service) Confirmed(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "register ported key",
		From:   []models.KeyState{models.StatePortabilityConfirmed},
		To:     models.StatePortabilityReady,
		Reason: "registry registration",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			_, err := s.registry.CreateKey(ctx, keystate.RegistrationRequest(ctx, key))
			if err != nil && !ports.IsRegistryError(err, ports.RegistryDuplicate) {
				return "", keystate.WrapRegistryErr(err, "create key")
			}
			return "", nil
		},
	})
}

func (s *Service) Ready(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "close portability claim",
		From:   []models.KeyState{models.StatePortabilityReady},
		To:     models.StateReady,
		Reason: "portability completed",
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

// Cancel is the owner withdrawing the portability claim.
func (s *Service) Cancel(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	return s.transition(ctx, keyID, "cancel portability claim",
		claimantCancelable, models.StatePortabilityCanceling, &userID, "canceled by owner")
}

func (s *Service) Canceling(ctx context.Context, keyID id.KeyID, reason string) (*models.Key, error) {
	if reason == "" {
		reason = "canceled"
	}
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "cancel portability claim",
		From:   claimantCancelable,
		To:     models.StatePortabilityCanceling,
		Done:   []models.KeyState{models.StatePortabilityCanceled},
		Reason: reason,
	})
}

func (s *Service) HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.Canceling(ctx, keyID, "expired")
}

// Canceled cancels the registry claim unless the registry already did.
func (s *Service) Canceled(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "release portability claim",
		From:   []models.KeyState{models.StatePortabilityCanceling},
		To:     models.StatePortabilityCanceled,
		Reason: "portability canceled",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil || claim.IsCancelled() {
				return "", err
			}
			fetched, err := s.registry.CancelPortabilityClaim(ctx, ports.ClaimActionRequest{
				ClaimID:  claim.ID,
				Document: claim.DocumentOr(key.Owner.Document),
				Reason:   "claimer canceled",
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "cancel portability claim")
			}
			claim.MarkCancelled("claimer canceled", requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
		},
	})
}

// RemoteCanceled records a cancellation the registry already applied.
func (s *Service) RemoteCanceled(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name: "record remote portability cancel",
		From: []models.KeyState{
			models.StatePortabilityOpened,
			models.StatePortabilityStarted,
			models.StatePortabilityConfirmed,
			models.StatePortabilityCanceling,
		},
		To:     models.StatePortabilityCanceled,
		Reason: "canceled at registry",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil || claim.IsCancelled() {
				return "", err
			}
			claim.MarkCancelled("canceled at registry", requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, nil)
		},
	})
}
