// Package app assembles the pix key engine from stores and adapters.
//
// The worker binary, the integration tests and anything embedding the engine
// build it the same way: pick stores and adapters, then call New.
package app

import (
	"errors"
	"log/slog"

	"pixkeys/internal/pixkey/config"
	"pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/claim"
	"pixkeys/internal/pixkey/service/decode"
	"pixkeys/internal/pixkey/service/keystate"
	"pixkeys/internal/pixkey/service/lifecycle"
	"pixkeys/internal/pixkey/service/ownership"
	"pixkeys/internal/pixkey/service/portability"
	"pixkeys/internal/pixkey/service/reconcile"
	"pixkeys/internal/pixkey/store/memory"
	"pixkeys/internal/pixkey/transport/messaging"
)

// Stores is every persistence port the engine needs.
type Stores struct {
	Keys          ports.KeyRepository
	Claims        ports.ClaimRepository
	History       ports.KeyHistoryRepository
	Verifications ports.KeyVerificationRepository
	Limits        ports.DecodeLimitRepository
	Decoded       ports.DecodedKeyRepository
	Cache         ports.DecodedKeyCache
	Tx            ports.Transactor
	Locker        ports.Locker
}

// MemoryStores adapts the in-memory store bundle.
func MemoryStores(s *memory.Stores) Stores {
	return Stores{
		Keys:          s.Keys,
		Claims:        s.Claims,
		History:       s.History,
		Verifications: s.Verifications,
		Limits:        s.Limits,
		Decoded:       s.Decoded,
		Cache:         s.Cache,
		Tx:            s.Tx,
		Locker:        s.Locker,
	}
}

// Adapters is every outbound collaborator.
type Adapters struct {
	Registry      ports.RegistryGateway
	Users         ports.UserDirectory
	Notifier      ports.NotificationService
	KeyEvents     ports.KeyEventEmitter
	ClaimEvents   ports.ClaimEventEmitter
	DecodedEvents ports.DecodedKeyEventEmitter
	Alerter       ports.IntegrityAlerter
}

// App holds the built use cases and the inbound surfaces over them.
type App struct {
	Machine     *keystate.Machine
	Lifecycle   *lifecycle.Service
	Ownership   *ownership.Service
	Portability *portability.Service
	Claim       *claim.Service
	Decode      *decode.Service
	Reconcile   *reconcile.Service
	Runner      *reconcile.Runner
	Router      *messaging.Router
}

func New(cfg config.Config, stores Stores, adapters Adapters, logger *slog.Logger, m *metrics.Metrics) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if adapters.Alerter == nil {
		return nil, errors.New("integrity alerter is required")
	}

	machine, err := keystate.New(stores.Keys, stores.History, adapters.KeyEvents, stores.Tx,
		keystate.WithLogger(logger),
		keystate.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	a := &App{Machine: machine}

	if a.Lifecycle, err = lifecycle.New(machine, stores.Verifications, adapters.Users, adapters.Registry, adapters.Notifier,
		lifecycle.WithLogger(logger),
		lifecycle.WithConfig(cfg),
	); err != nil {
		return nil, err
	}
	if a.Ownership, err = ownership.New(machine, stores.Claims, adapters.Registry,
		ownership.WithLogger(logger),
		ownership.WithAlerter(adapters.Alerter),
	); err != nil {
		return nil, err
	}
	if a.Portability, err = portability.New(machine, stores.Claims, adapters.Registry,
		portability.WithLogger(logger),
		portability.WithConfig(cfg.Portability),
	); err != nil {
		return nil, err
	}
	if a.Claim, err = claim.New(machine, stores.Claims, adapters.Registry,
		claim.WithLogger(logger),
		claim.WithAlerter(adapters.Alerter),
	); err != nil {
		return nil, err
	}
	if a.Decode, err = decode.New(stores.Keys, stores.Decoded, stores.Limits, adapters.Users, adapters.Registry,
		adapters.DecodedEvents, stores.Tx,
		decode.WithLogger(logger),
		decode.WithMetrics(m),
		decode.WithConfig(cfg.Decode),
		decode.WithCache(stores.Cache),
	); err != nil {
		return nil, err
	}
	if a.Reconcile, err = reconcile.New(stores.Keys, stores.Claims, adapters.Registry, adapters.KeyEvents, adapters.ClaimEvents,
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(m),
		reconcile.WithConfig(cfg.Reconcile, cfg.ISPB),
	); err != nil {
		return nil, err
	}
	if a.Runner, err = reconcile.NewRunner(a.Reconcile, stores.Locker, logger); err != nil {
		return nil, err
	}

	useCases := messaging.UseCases{
		Lifecycle:   a.Lifecycle,
		Ownership:   a.Ownership,
		Portability: a.Portability,
		Claim:       a.Claim,
	}
	claims, err := messaging.NewClaimReadyHandler(stores.Keys, useCases, logger)
	if err != nil {
		return nil, err
	}
	a.Router = messaging.NewRouter(logger)
	useCases.Register(a.Router, claims)
	return a, nil
}
