// Package claim handles this platform's keys on the donor side of an
// ownership claim: the holder keeps the key by verifying a code, or gives
// it up.
package claim

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

// Pending puts a ready key on hold because another institution claims it.
func (s *Service) Pending(ctx context.Context, keyID id.KeyID, claimID id.ClaimID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "hold key for claim",
		From:   models.ReadyStates,
		To:     models.StateClaimPending,
		Reason: "ownership claim received",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			key.ClaimID = &claimID
			if key.Type.RequiresCode() {
				code, err := models.NewVerificationCode()
				if err != nil {
					return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
				}
				key.SetCode(code, requestcontext.Now(ctx))
			}
			return "", nil
		},
	})
}

// Denied keeps the key: the claimant is turned away locally or at the
// registry.
func (s *Service) Denied(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "deny claim",
		From:   []models.KeyState{models.StateClaimDenied},
		To:     models.StateReady,
		Reason: "claim denied by holder",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claimant, err := s.localClaimant(ctx, key, "claim.denied")
			if err != nil {
				return "", err
			}
			if claimant != nil {
				return "", s.machine.Apply(ctx, claimant, models.StateOwnershipCanceled, "claim denied by holder")
			}
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil {
				return "", err
			}
			fetched, err := s.registry.DenyClaim(ctx, ports.ClaimActionRequest{
				ClaimID:  claim.ID,
				Document: claim.DocumentOr(key.Owner.Document),
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "deny claim")
			}
			key.ClaimID = nil
			claim.MarkCancelled("denied by donor", requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
		},
	})
}

// Closing gives the key up. A local claimant takes over the registry entry
// directly.
func (s *Service) Closing(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "give key up",
		From:   []models.KeyState{models.StateClaimClosing},
		To:     models.StateClaimClosed,
		Reason: "key given up to claimant",
		Run: func(ctx context.Context, key *models.Key) (models.KeyState, error) {
			claimant, err := s.localClaimant(ctx, key, "claim.closing")
			if err != nil {
				return "", err
			}
			if claimant != nil {
				return "", s.handOver(ctx, key, claimant)
			}
			claim, err := keystate.LoadClaim(ctx, s.claims, key)
			if err != nil || claim == nil {
				return "", err
			}
			fetched, err := s.registry.CloseClaim(ctx, ports.ClaimActionRequest{
				ClaimID:  claim.ID,
				Document: claim.DocumentOr(key.Owner.Document),
			})
			if err != nil {
				return "", keystate.WrapRegistryErr(err, "close claim")
			}
			claim.MarkClosed(requestcontext.Now(ctx))
			return "", keystate.UpdateClaim(ctx, s.claims, claim, fetched)
		},
	})
}

func (s *Service) handOver(ctx context.Context, donor, claimant *models.Key) error {
	err := s.registry.DeleteKey(ctx, ports.DeleteKeyRequest{
		Value:  donor.ValueOrEmpty(),
		Type:   donor.Type,
		Reason: "ownership claim",
	})
	if err != nil && !ports.IsRegistryError(err, ports.RegistryNotFound) {
		return keystate.WrapRegistryErr(err, "delete key")
	}
	_, err = s.registry.CreateKey(ctx, keystate.RegistrationRequest(ctx, claimant))
	if err != nil && !ports.IsRegistryError(err, ports.RegistryDuplicate) {
		return keystate.WrapRegistryErr(err, "create key")
	}
	return s.machine.Apply(ctx, claimant, models.StateOwnershipReady, "key handed over by holder")
}

// Canceled returns the key to READY after the claimant withdrew.
func (s *Service) Canceled(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "release claim hold",
		From:   []models.KeyState{models.StateClaimPending},
		To:     models.StateReady,
		Reason: "claim withdrawn by claimant",
		Run: func(_ context.Context, key *models.Key) (models.KeyState, error) {
			key.ClaimID = nil
			key.Code = ""
			key.CodeGeneratedAt = nil
			return "", nil
		},
	})
}

// HandlePendingExpired gives the key up when the holder never answered.
func (s *Service) HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "expire claim hold",
		From:   []models.KeyState{models.StateClaimPending},
		To:     models.StateClaimClosing,
		Done:   []models.KeyState{models.StateClaimClosed},
		Reason: "expired",
	})
}

// localClaimant finds the local key claiming key's value, if any.
func (s *Service) localClaimant(ctx context.Context, key *models.Key, detectedBy string) (*models.Key, error) {
	others, err := s.machine.Counterparts(ctx, key, s.alerter, detectedBy)
	if err != nil {
		return nil, err
	}
	for _, other := range others {
		if other.State.In(models.StateOwnershipWaiting, models.StateOwnershipStarted, models.StateOwnershipConfirmed) && other.ClaimID == nil {
			return other, nil
		}
	}
	return nil, nil
}
