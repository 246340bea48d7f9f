// Package keystate runs guarded, idempotent transitions of a single pix key.
//
// Every use case that moves a key goes through Machine.Transition:
//
//  1. open a transaction and re-read the key
//  2. return it unchanged when it already sits in a target state
//  3. reject states outside the step's From set with CodeInvalidState
//  4. run the step body (registry calls, sibling key updates)
//  5. persist with a version check, append history, emit the state event
//
// Sibling keys touched inside a step body are saved with Machine.Apply so
// they get the same history and event treatment.
package keystate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/platform/tx"
	"pixkeys/pkg/requestcontext"
)

// Step describes one guarded transition.
type Step struct {
	Name string
	From []models.KeyState
	To   models.KeyState

	// Done lists extra states that count as already transitioned, for steps
	// whose body may pick a different target than To.
	Done []models.KeyState

	// Owner, when set, restricts the step to keys owned by that user.
	Owner *id.UserID

	// Reason is carried on the emitted event.
	Reason string

	// Run executes the step body inside the transaction once the guards
	// pass. A non-empty returned state overrides To.
	Run func(ctx context.Context, key *models.Key) (models.KeyState, error)
}

type Machine struct {
	keys    ports.KeyRepository
	history ports.KeyHistoryRepository
	events  ports.KeyEventEmitter
	tx      ports.Transactor
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mt
	}
}

func New(keys ports.KeyRepository, history ports.KeyHistoryRepository, events ports.KeyEventEmitter, transactor ports.Transactor, opts ...Option) (*Machine, error) {
	if keys == nil {
		return nil, errors.New("key repository is required")
	}
	if history == nil {
		return nil, errors.New("key history repository is required")
	}
	if events == nil {
		return nil, errors.New("key event emitter is required")
	}
	if transactor == nil {
		return nil, errors.New("transactor is required")
	}
	m := &Machine{
		keys:    keys,
		history: history,
		events:  events,
		tx:      transactor,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Machine) Keys() ports.KeyRepository { return m.keys }

func (m *Machine) Logger() *slog.Logger { return m.logger }

func (m *Machine) Metrics() *metrics.Metrics { return m.metrics }

// RunInTx exposes the machine's transaction boundary to use cases that
// mutate more than keys (claims, verifications).
func (m *Machine) RunInTx(ctx context.Context, partition string, fn func(ctx context.Context) error) error {
	return m.tx.RunInTx(tx.WithPartition(ctx, partition), fn)
}

// Transition applies step to the key identified by keyID.
func (m *Machine) Transition(ctx context.Context, keyID id.KeyID, step Step) (*models.Key, error) {
	ctx = requestcontext.WithKeyID(ctx, keyID)
	var result *models.Key
	err := m.RunInTx(ctx, keyID.String(), func(ctx context.Context) error {
		key, err := m.Load(ctx, keyID, step.Owner)
		if err != nil {
			return err
		}
		if key.State == step.To || key.State.In(step.Done...) {
			result = key
			return nil
		}
		if !key.State.In(step.From...) {
			return InvalidState(step.Name, key.State)
		}

		target := step.To
		if step.Run != nil {
			override, err := step.Run(ctx, key)
			if err != nil {
				return err
			}
			if override != "" {
				target = override
			}
		}
		if err := m.Apply(ctx, key, target, step.Reason); err != nil {
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

// Load reads a key and checks ownership when owner is set.
func (m *Machine) Load(ctx context.Context, keyID id.KeyID, owner *id.UserID) (*models.Key, error) {
	key, err := m.keys.GetByID(ctx, keyID)
	if err != nil {
		return nil, WrapStoreErr(err, "key")
	}
	if owner != nil && !key.IsOwnedBy(*owner) {
		return nil, dErrors.New(dErrors.CodeForbidden, "key belongs to another user")
	}
	return key, nil
}

// Apply moves key to target and persists it with history and an event. It
// must run inside the caller's transaction.
func (m *Machine) Apply(ctx context.Context, key *models.Key, target models.KeyState, reason string) error {
	from := key.State
	now := requestcontext.Now(ctx)
	key.Transition(target, now)
	if err := m.keys.Update(ctx, key); err != nil {
		return WrapStoreErr(err, "key")
	}
	if err := m.history.Create(ctx, models.NewKeyHistory(key, now)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append key history")
	}
	event := models.NewKeyEvent(key, from, reason, now)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := m.events.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit key event")
	}
	m.metrics.IncrementTransition(string(from), string(target))
	ports.LogTransition(ctx, m.logger, key, from, "reason", reason)
	return nil
}

// Record persists key as created with its first history entry and event.
func (m *Machine) Record(ctx context.Context, key *models.Key) error {
	now := requestcontext.Now(ctx)
	if err := m.keys.Create(ctx, key); err != nil {
		return WrapStoreErr(err, "key")
	}
	if err := m.history.Create(ctx, models.NewKeyHistory(key, now)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append key history")
	}
	event := models.NewKeyEvent(key, "", "created", now)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := m.events.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit key event")
	}
	m.metrics.IncrementTransition("", string(key.State))
	ports.LogTransition(ctx, m.logger, key, "")
	return nil
}

// InvalidState is the error for a use case invoked from the wrong state.
func InvalidState(op string, state models.KeyState) error {
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("%s not allowed from state %s", op, state))
}

// WrapStoreErr translates store sentinels into domain errors.
func WrapStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, entity+" was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+entity)
	}
}

// WrapRegistryErr wraps a registry failure that the step cannot map to a
// state. The *ports.RegistryError stays reachable through errors.As.
func WrapRegistryErr(err error, op string) error {
	if kind, ok := ports.RegistryErrorKindOf(err); ok {
		switch kind {
		case ports.RegistryOffline, ports.RegistryOperationTimeout, ports.RegistryLockedByClaim:
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "registry "+op+" unavailable")
		}
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "registry "+op+" failed")
}

// RegistrationRequest builds the registry CreateKey payload for key.
func RegistrationRequest(ctx context.Context, key *models.Key) ports.CreateKeyRequest {
	return ports.CreateKeyRequest{
		KeyID:     key.ID,
		Type:      key.Type,
		Value:     key.ValueOrEmpty(),
		Owner:     key.Owner,
		Account:   key.Account,
		RequestID: requestcontext.RequestID(ctx),
	}
}
