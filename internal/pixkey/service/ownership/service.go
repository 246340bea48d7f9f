// Package ownership drives ownership claims: this platform claims a key
// another institution (or another local user) currently holds.
package ownership

import (
	"context"
	"errors"
	"log/slog"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

type Service struct {
	machine  *keystate.Machine
	claims   ports.ClaimRepository
	registry ports.RegistryGateway
	alerter  ports.IntegrityAlerter
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAlerter reports values held by more than two keys.
func WithAlerter(alerter ports.IntegrityAlerter) Option {
	return func(s *Service) {
		s.alerter = alerter
	}
}

func New(machine *keystate.Machine, claims ports.ClaimRepository, registry ports.RegistryGateway, opts ...Option) (*Service, error) {
	if machine == nil {
		return nil, errors.New("key state machine is required")
	}
	if claims == nil {
		return nil, errors.New("claim repository is required")
	}
	if registry == nil {
		return nil, errors.New("registry gateway is required")
	}
	s := &Service{
		machine:  machine,
		claims:   claims,
		registry: registry,
		logger:   machine.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var cancelableStates = []models.KeyState{
	models.StateOwnershipPending,
	models.StateOwnershipOpened,
	models.StateOwnershipStarted,
	models.StateOwnershipWaiting,
}

// ApproveStart is the user's go-ahead to claim a key held elsewhere.
func (s *Service) ApproveStart(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "approve ownership claim",
		From:   []models.KeyState{models.StateOwnershipPending},
		To:     models.StateOwnershipOpened,
		Owner:  &userID,
		Reason: "approved by owner",
	})
}

// Opened starts the claim. When the current holder is another local key
// the claim is resolved between the two keys without the registry.
func (s *Service) Opened(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "open ownership claim",
		From:   []models.KeyState{models.StateOwnershipOpened},
		To:     models.StateOwnershipStarted,
		Done:   []models.KeyState{models.StateOwnershipWaiting},
		Reason: "ownership claim opened",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			others, err := s.machine.Counterparts(ctx, key, s.alerter, "ownership.opened")
			if err != nil {
				return "", err
			}
			if len(others) == 1 && (others[0].IsReady() || others[0].State == models.StateClaimPending) {
				if err := s.claimLocally(ctx, others[0]); err != nil {
					return "", err
				}
				return models.StateOwnershipWaiting, nil
			}

			claim, err := s.registry.CreateOwnershipClaim(ctx, ports.ClaimRequest{
				KeyID:    key.ID,
				KeyType:  key.Type,
				KeyValue: key.ValueOrEmpty(),
				Owner:    key.Owner,
				Account:  key.Account,
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "create ownership claim")
			}
			if err := keystate.SaveClaim(ctx, s.claims, key, claim, models.ClaimOwnership, models.ParticipationClaimer); err != nil {
				return "", err
			}
			return models.StateOwnershipStarted, nil
		},
	})
}

// claimLocally puts the local donor key into CLAIM_PENDING so its owner
// can keep it by verifying a fresh code.
func (s *Service) claimLocally(ctx context.Context, donor *models.Key) error {
	if donor.State == models.StateClaimPending {
		return nil
	}
	if donor.Type.RequiresCode() {
		code, err := models.NewVerificationCode()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
		}
		donor.SetCode(code, requestcontext.Now(ctx))
	}
	return s.machine.Apply(ctx, donor, models.StateClaimPending, "local ownership claim")
}

func (s *Service) Started(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "await ownership resolution",
		From:   []models.KeyState{models.StateOwnershipStarted},
		To:     models.StateOwnershipWaiting,
		Reason: "ownership claim started",
	})
}

// Waiting completes the claim once the donor confirmed or the resolution
// period lapsed.
func (s *Service) Waiting(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "finish ownership claim",
		From:   []models.KeyState{models.StateOwnershipWaiting},
		To:     models.StateOwnershipConfirmed,
		Reason: "ownership claim resolved",
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

// Confirmed registers the claimed key under this platform.
func (s *Service) Confirmed(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "register claimed key",
		From:   []models.KeyState{models.StateOwnershipConfirmed},
		To:     models.StateOwnershipReady,
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
		Name:   "close ownership claim",
		From:   []models.KeyState{models.StateOwnershipReady},
		To:     models.StateReady,
		Reason: "ownership claim completed",
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

// Cancel is the owner withdrawing the claim.
func (s *Service) Cancel(ctx context.Context, userID id.UserID, keyID id.KeyID, reason string) (*models.Key, error) {
	return s.canceling(ctx, keyID, &userID, reason)
}

func (s *Service) Canceling(ctx context.Context, keyID id.KeyID, reason string) (*models.Key, error) {
	return s.canceling(ctx, keyID, nil, reason)
}

// HandlePendingExpired abandons a claim the owner never approved.
func (s *Service) HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.canceling(ctx, keyID, nil, "expired")
}

func (s *Service) canceling(ctx context.Context, keyID id.KeyID, owner *id.UserID, reason string) (*models.Key, error) {
	if reason == "" {
		reason = "canceled"
	}
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "cancel ownership claim",
		From:   cancelableStates,
		To:     models.StateOwnershipCanceling,
		Done:   []models.KeyState{models.StateOwnershipCanceled},
		Owner:  owner,
		Reason: reason,
	})
}

// Canceled releases whatever the claim holds: a local donor key goes back
// to READY, a registry claim is cancelled.
func (s *Service) Canceled(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "release ownership claim",
		From:   []models.KeyState{models.StateOwnershipCanceling},
		To:     models.StateOwnershipCanceled,
		Reason: "ownership claim canceled",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil {
				return "", err
			}
			if claim != nil {
				if claim.IsCancelled() {
					return "", nil
				}
				fetched, err := s.registry.CancelOwnershipClaim(ctx, ports.ClaimActionRequest{
					ClaimID:  claim.ID,
					Document: claim.DocumentOr(key.Owner.Document),
					Reason:   "claimer canceled",
				})
				if err != nil {
					return "", keystate.WrapRegistryErr(err, "cancel ownership claim")
				}
				claim.MarkCancelled("claimer canceled", requestcontext.Now(ctx))
				return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
			}

			others, err := s.machine.Counterparts(ctx, key, s.alerter, "ownership.canceled")
			if err != nil {
				return "", err
			}
			for _, other := range others {
				if other.State == models.StateClaimPending {
					if err := s.machine.Apply(ctx, other, models.StateReady, "local ownership claim canceled"); err != nil {
						return "", err
					}
				}
			}
			return "", nil
		},
	})
}
