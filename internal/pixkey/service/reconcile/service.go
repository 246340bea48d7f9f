// Package reconcile runs the periodic jobs that keep local state moving:
// expiring keys stuck in transient states and pulling claim updates from
// the registry.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/time/rate"

	"pixkeys/internal/pixkey/config"
	"pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/requestcontext"
)

type Service struct {
	keys        ports.KeyRepository
	claims      ports.ClaimRepository
	registry    ports.RegistryGateway
	keyEvents   ports.KeyEventEmitter
	claimEvents ports.ClaimEventEmitter
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
	config      config.ReconcileConfig
	ispb        string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfig sets the job parameters and this platform's institution id,
// which decides claim participation.
func WithConfig(cfg config.ReconcileConfig, ispb string) Option {
	return func(s *Service) {
		s.config = cfg
		s.ispb = ispb
	}
}

func New(
	keys ports.KeyRepository,
	claims ports.ClaimRepository,
	registry ports.RegistryGateway,
	keyEvents ports.KeyEventEmitter,
	claimEvents ports.ClaimEventEmitter,
	opts ...Option,
) (*Service, error) {
	if keys == nil {
		return nil, errors.New("key repository is required")
	}
	if claims == nil {
		return nil, errors.New("claim repository is required")
	}
	if registry == nil {
		return nil, errors.New("registry gateway is required")
	}
	if keyEvents == nil {
		return nil, errors.New("key event emitter is required")
	}
	if claimEvents == nil {
		return nil, errors.New("claim event emitter is required")
	}
	defaults := config.DefaultConfig()
	s := &Service{
		keys:        keys,
		claims:      claims,
		registry:    registry,
		keyEvents:   keyEvents,
		claimEvents: claimEvents,
		logger:      slog.Default(),
		config:      defaults.Reconcile,
		ispb:        defaults.ISPB,
	}
	for _, opt := range opts {
		opt(s)
	}
	limit := rate.Inf
	if s.config.RegistryRPS > 0 {
		limit = rate.Limit(s.config.RegistryRPS)
	}
	s.limiter = rate.NewLimiter(limit, 1)
	if s.config.ScanBatchSize <= 0 {
		s.config.ScanBatchSize = 200
	}
	if s.config.ClaimPageSize <= 0 {
		s.config.ClaimPageSize = 100
	}
	return s, nil
}

// ExpireStale emits an expired event for every key that sat in a transient
// state past its timeout. It never mutates keys; the event handlers do.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	emitted := 0
	for _, rule := range s.config.StaleRules {
		before := now.Add(-rule.Timeout)
		states := []models.KeyState{rule.State}
		for page := 1; ; page++ {
			keys, err := s.keys.GetByStaleUpdatedAtAndStates(ctx, before, states, ports.Page{Number: page, Size: s.config.ScanBatchSize})
			if err != nil {
				return emitted, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan stale keys")
			}
			for _, key := range keys {
				if err := s.emitExpired(ctx, key); err != nil {
					return emitted, err
				}
				emitted++
			}
			if len(keys) < s.config.ScanBatchSize {
				break
			}
		}
	}
	s.metrics.AddReconcileEmitted("expire_stale", emitted)
	if emitted > 0 {
		s.logger.InfoContext(ctx, "stale keys expired", "count", emitted)
	}
	return emitted, nil
}

// ExpireOwnershipWaiting emits the waiting-expired event for claims whose
// resolution period has elapsed.
func (s *Service) ExpireOwnershipWaiting(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.config.ResolutionPeriod)
	emitted := 0
	for page := 1; ; page++ {
		keys, err := s.keys.GetByState(ctx, models.StateOwnershipWaiting, ports.Page{Number: page, Size: s.config.ScanBatchSize})
		if err != nil {
			return emitted, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan waiting keys")
		}
		for _, key := range keys {
			// Local claimants wait on a holder here, not on a registry claim.
			if key.ClaimID == nil {
				continue
			}
			_, err := s.claims.GetByIDOpenedBefore(ctx, *key.ClaimID, cutoff)
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			if err != nil {
				return emitted, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
			}
			if err := s.emitExpired(ctx, key); err != nil {
				return emitted, err
			}
			emitted++
		}
		if len(keys) < s.config.ScanBatchSize {
			break
		}
	}
	s.metrics.AddReconcileEmitted("expire_ownership_waiting", emitted)
	return emitted, nil
}

func (s *Service) emitExpired(ctx context.Context, key *models.Key) error {
	err := s.keyEvents.EmitExpired(ctx, models.ExpiredEvent{
		Name:       models.ExpiredEventName(key.State),
		KeyID:      key.ID,
		State:      key.State,
		UpdatedAt:  key.UpdatedAt,
		OccurredAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit expired event")
	}
	return nil
}

// SyncClaims pulls claims changed within the sync window and emits
// claim-ready for new claims and status changes.
func (s *Service) SyncClaims(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	from := now.Add(-s.config.ClaimSyncWindow)
	emitted := 0
	for page := 1; ; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return emitted, dErrors.Wrap(err, dErrors.CodeTimeout, "claim sync interrupted")
		}
		list, err := s.registry.ListClaims(ctx, ports.ListClaimsRequest{
			Page: page,
			Size: s.config.ClaimPageSize,
			From: from,
			To:   now,
		})
		if err != nil {
			return emitted, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list registry claims")
		}
		for _, fetched := range list.Items {
			changed, err := s.syncClaim(ctx, fetched)
			if err != nil {
				return emitted, err
			}
			if changed {
				emitted++
			}
		}
		if !list.HasNext || len(list.Items) == 0 {
			break
		}
	}
	s.metrics.AddReconcileEmitted("sync_claims", emitted)
	return emitted, nil
}

func (s *Service) syncClaim(ctx context.Context, fetched *models.Claim) (bool, error) {
	now := requestcontext.Now(ctx)
	stored, err := s.claims.GetByID(ctx, fetched.ID)
	var previous models.ClaimStatus
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		stored = fetched.Clone()
		if stored.Participation == "" {
			stored.Participation = s.participation(stored)
		}
		stored.CreatedAt = now
		stored.UpdatedAt = now
		if err := s.claims.Create(ctx, stored); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store claim")
		}
	case err != nil:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	default:
		previous = stored.Status
		if !stored.SyncFrom(fetched, now) {
			return false, nil
		}
		if err := s.claims.Update(ctx, stored); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
		}
	}

	err = s.claimEvents.EmitClaimReady(ctx, models.ClaimReadyEvent{
		ClaimID:       stored.ID,
		KeyValue:      stored.KeyValue,
		Kind:          stored.Kind,
		Status:        stored.Status,
		Previous:      previous,
		Participation: stored.Participation,
		OccurredAt:    now,
	})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit claim ready")
	}
	return true, nil
}

func (s *Service) participation(claim *models.Claim) models.Participation {
	if claim.ClaimerISPB == s.ispb {
		return models.ParticipationClaimer
	}
	return models.ParticipationDonor
}
