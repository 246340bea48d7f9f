// Package portability moves keys between institutions for the same owner.
//
// As claimant the platform pulls a key its user holds elsewhere; as donor
// it answers portability requests for keys it holds.
package portability

import (
	"context"
	"errors"
	"log/slog"

	"pixkeys/internal/pixkey/config"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
)

type Service struct {
	machine  *keystate.Machine
	claims   ports.ClaimRepository
	registry ports.RegistryGateway
	logger   *slog.Logger
	config   config.PortabilityConfig
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg config.PortabilityConfig) Option {
	return func(s *Service) {
		s.config = cfg
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

// transition is Transition with just the guard, for steps without a body.
func (s *Service) transition(ctx context.Context, keyID id.KeyID, name string, from []models.KeyState, to models.KeyState, owner *id.UserID, reason string) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   name,
		From:   from,
		To:     to,
		Owner:  owner,
		Reason: reason,
	})
}
