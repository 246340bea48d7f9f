// Package lifecycle implements the single-key state machine: create,
// registry registration, code verification, deletion and dismissal.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"pixkeys/internal/pixkey/config"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
)

type Service struct {
	machine       *keystate.Machine
	keys          ports.KeyRepository
	verifications ports.KeyVerificationRepository
	users         ports.UserDirectory
	registry      ports.RegistryGateway
	notifier      ports.NotificationService
	logger        *slog.Logger
	config        config.Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(
	machine *keystate.Machine,
	verifications ports.KeyVerificationRepository,
	users ports.UserDirectory,
	registry ports.RegistryGateway,
	notifier ports.NotificationService,
	opts ...Option,
) (*Service, error) {
	if machine == nil {
		return nil, errors.New("key state machine is required")
	}
	if verifications == nil {
		return nil, errors.New("key verification store is required")
	}
	if users == nil {
		return nil, errors.New("user directory is required")
	}
	if registry == nil {
		return nil, errors.New("registry gateway is required")
	}
	if notifier == nil {
		return nil, errors.New("notification service is required")
	}
	s := &Service{
		machine:       machine,
		keys:          machine.Keys(),
		verifications: verifications,
		users:         users,
		registry:      registry,
		notifier:      notifier,
		logger:        machine.Logger(),
		config:        config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns a key owned by userID.
func (s *Service) Get(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Load(ctx, keyID, &userID)
}

// List pages through the caller's non-canceled keys.
func (s *Service) List(ctx context.Context, userID id.UserID, page ports.Page) (*ports.KeyPage, error) {
	if page.Size <= 0 || page.Size > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "page size must be between 1 and 100")
	}
	if page.Number < 1 {
		page.Number = 1
	}
	result, err := s.keys.PaginatedListByOwnerNonCanceled(ctx, userID, page)
	if err != nil {
		return nil, keystate.WrapStoreErr(err, "key")
	}
	return result, nil
}

// HandlePendingExpired cancels a key whose verification code was never used.
func (s *Service) HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	return s.machine.Transition(ctx, keyID, keystate.Step{
		Name:   "expire pending key",
		From:   []models.KeyState{models.StatePending},
		To:     models.StateCanceled,
		Reason: "expired",
	})
}
