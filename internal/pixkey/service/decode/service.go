// Package decode resolves a key value to the account it routes to, under a
// per-user token bucket.
package decode

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"pixkeys/internal/pixkey/config"
	"pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/service/keystate"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/platform/tx"
	"pixkeys/pkg/requestcontext"
)

type Service struct {
	keys     ports.KeyRepository
	decoded  ports.DecodedKeyRepository
	limits   ports.DecodeLimitRepository
	cache    ports.DecodedKeyCache
	users    ports.UserDirectory
	registry ports.RegistryGateway
	events   ports.DecodedKeyEventEmitter
	tx       ports.Transactor
	group    singleflight.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
	config   config.DecodeConfig
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

func WithConfig(cfg config.DecodeConfig) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithCache enables the registry result cache.
func WithCache(cache ports.DecodedKeyCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func New(
	keys ports.KeyRepository,
	decoded ports.DecodedKeyRepository,
	limits ports.DecodeLimitRepository,
	users ports.UserDirectory,
	registry ports.RegistryGateway,
	events ports.DecodedKeyEventEmitter,
	transactor ports.Transactor,
	opts ...Option,
) (*Service, error) {
	if keys == nil {
		return nil, errors.New("key repository is required")
	}
	if decoded == nil {
		return nil, errors.New("decoded key repository is required")
	}
	if limits == nil {
		return nil, errors.New("decode limit repository is required")
	}
	if users == nil {
		return nil, errors.New("user directory is required")
	}
	if registry == nil {
		return nil, errors.New("registry gateway is required")
	}
	if events == nil {
		return nil, errors.New("decoded key event emitter is required")
	}
	if transactor == nil {
		return nil, errors.New("transactor is required")
	}
	s := &Service{
		keys:     keys,
		decoded:  decoded,
		limits:   limits,
		users:    users,
		registry: registry,
		events:   events,
		tx:       transactor,
		logger:   slog.Default(),
		config:   config.DefaultConfig().Decode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type DecodeRequest struct {
	ID     id.DecodedKeyID
	UserID id.UserID
	Value  string
	Type   models.KeyType
}

// Decode resolves req.Value. Local keys are served from the key store;
// everything else goes through the cache to the registry.
func (s *Service) Decode(ctx context.Context, req DecodeRequest) (*models.DecodedKey, error) {
	if req.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "decode id is required")
	}
	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	value := strings.TrimSpace(req.Value)
	if req.Type == models.KeyTypeEmail {
		value = strings.ToLower(value)
	}
	if err := models.ValidateLookupValue(req.Type, value); err != nil {
		return nil, err
	}

	existing, err := s.decoded.GetByID(ctx, req.ID)
	if err == nil {
		if existing.UserID != req.UserID {
			return nil, dErrors.New(dErrors.CodeForbidden, "decoded key belongs to another user")
		}
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decoded key")
	}

	user, err := s.activeUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	policy := s.config.Policy(user.PersonType)
	if err := s.reserve(ctx, req.UserID, policy); err != nil {
		return nil, err
	}

	result, local, err := s.resolveLocal(ctx, req.UserID, value)
	if err == nil && result == nil {
		result, err = s.resolveRemote(ctx, req.Type, value, user.Document)
		if ports.IsRegistryError(err, ports.RegistryNotFound) {
			return nil, s.recordMiss(ctx, req, value, policy)
		}
		if err != nil {
			err = keystate.WrapRegistryErr(err, "decode key")
		}
	}
	if err != nil {
		s.refund(ctx, req.UserID, policy)
		return nil, err
	}

	decoded := result.Bind(req.ID, req.UserID, local, requestcontext.Now(ctx))
	if err := s.decoded.Create(ctx, decoded); err != nil {
		s.refund(ctx, req.UserID, policy)
		if errors.Is(err, sentinel.ErrConflict) {
			return s.decoded.GetByID(ctx, req.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store decoded key")
	}
	if err := s.emit(ctx, decoded); err != nil {
		return nil, err
	}
	if local {
		s.metrics.IncrementDecode("local")
	} else {
		s.metrics.IncrementDecode("remote")
	}
	return decoded, nil
}

// resolveLocal looks for a ready key holding value among this platform's
// active users. Looking up one's own key is refused.
func (s *Service) resolveLocal(ctx context.Context, requester id.UserID, value string) (*models.DecodeResult, bool, error) {
	holders, err := s.keys.GetByValueNonCanceled(ctx, value)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up key")
	}
	for _, key := range holders {
		if !key.IsReady() {
			continue
		}
		if key.IsOwnedBy(requester) {
			return nil, false, dErrors.New(dErrors.CodeForbidden, "cannot decode own key")
		}
		owner, err := s.users.GetUser(ctx, key.UserID)
		if err != nil || !owner.Active {
			continue
		}
		return &models.DecodeResult{
			KeyValue: key.ValueOrEmpty(),
			KeyType:  key.Type,
			Owner:    key.Owner,
			Account:  key.Account,
		}, true, nil
	}
	return nil, false, nil
}

// resolveRemote asks the registry, collapsing concurrent identical lookups
// into one call and caching the answer.
func (s *Service) resolveRemote(ctx context.Context, keyType models.KeyType, value, requesterDocument string) (*models.DecodeResult, error) {
	hash := cacheKey(keyType, value)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, hash)
		if err != nil {
			s.logger.WarnContext(ctx, "decode cache read failed", "error", err)
		}
		if ok {
			s.metrics.IncrementDecodeCacheHit()
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(hash, func() (any, error) {
		if s.cache != nil {
			// A flight that finished between the read above and Do has
			// already filled the cache.
			if cached, ok, _ := s.cache.Get(ctx, hash); ok {
				return cached, nil
			}
		}
		result, err := s.registry.DecodeKey(ctx, ports.DecodeKeyRequest{
			Value:             value,
			Type:              keyType,
			RequesterDocument: requesterDocument,
		})
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, ports.NewRegistryError(ports.RegistryNotFound, "decode key", "empty response", nil)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, hash, result, s.config.CacheTTL); err != nil {
				s.logger.WarnContext(ctx, "decode cache write failed", "error", err)
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	result := *v.(*models.DecodeResult)
	return &result, nil
}

func (s *Service) recordMiss(ctx context.Context, req DecodeRequest, value string, policy models.BucketPolicy) error {
	now := requestcontext.Now(ctx)
	miss := &models.DecodedKey{
		ID:        req.ID,
		UserID:    req.UserID,
		KeyValue:  value,
		KeyType:   req.Type,
		State:     models.DecodedKeyError,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.decoded.Create(ctx, miss); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		s.refund(ctx, req.UserID, policy)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store decoded key")
	}
	if err := s.emit(ctx, miss); err != nil {
		return err
	}
	// The lookup cost was reserved up front; a miss pays the rest of the penalty.
	if rest := s.config.InvalidPenalty - s.config.ValidCost; rest > 0 {
		if err := s.charge(ctx, req.UserID, policy, -rest); err != nil {
			return err
		}
	}
	s.metrics.IncrementDecode("not_found")
	return dErrors.New(dErrors.CodeNotFound, "key not found")
}

// Confirm marks a pending decoded key as used for a payment and credits the
// bucket.
func (s *Service) Confirm(ctx context.Context, userID id.UserID, decodedID id.DecodedKeyID) (*models.DecodedKey, error) {
	decoded, err := s.decoded.GetByID(ctx, decodedID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "decoded key not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decoded key")
	}
	if decoded.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "decoded key belongs to another user")
	}
	if decoded.State == models.DecodedKeyConfirmed {
		return decoded, nil
	}
	if decoded.State != models.DecodedKeyPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "decoded key is not pending")
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	decoded.State = models.DecodedKeyConfirmed
	decoded.UpdatedAt = requestcontext.Now(ctx)
	if err := s.decoded.Update(ctx, decoded); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update decoded key")
	}
	if err := s.emit(ctx, decoded); err != nil {
		return nil, err
	}
	if err := s.charge(ctx, userID, s.config.Policy(user.PersonType), s.config.ConfirmedCredit); err != nil {
		return nil, err
	}
	return decoded, nil
}

var errLimitReached = errors.New("decode limit reached")

// reserve takes the lookup cost from the user's bucket before anything is
// resolved. An empty bucket is left as it is so the refill clock keeps running.
func (s *Service) reserve(ctx context.Context, userID id.UserID, policy models.BucketPolicy) error {
	cost := s.config.ValidCost
	err := s.updateLimit(ctx, userID, policy, func(limit *models.UserDecodeLimit, now time.Time) error {
		if !limit.CanAfford(policy, cost, now) {
			return errLimitReached
		}
		limit.Apply(policy, -cost, now)
		return nil
	})
	if errors.Is(err, errLimitReached) {
		s.metrics.IncrementDecode("rate_limited")
		return dErrors.New(dErrors.CodeRateLimited, "decode limit reached")
	}
	return err
}

// refund gives back a reservation whose lookup failed for reasons the user
// is not charged for.
func (s *Service) refund(ctx context.Context, userID id.UserID, policy models.BucketPolicy) {
	if err := s.charge(ctx, userID, policy, s.config.ValidCost); err != nil {
		s.logger.WarnContext(ctx, "decode limit refund failed", "user_id", userID.String(), "error", err)
	}
}

func (s *Service) charge(ctx context.Context, userID id.UserID, policy models.BucketPolicy, delta int) error {
	return s.updateLimit(ctx, userID, policy, func(limit *models.UserDecodeLimit, now time.Time) error {
		limit.Apply(policy, delta, now)
		return nil
	})
}

// updateLimit runs fn against the user's bucket inside the bucket's
// partition, creating the bucket on first use and retrying lost version races.
func (s *Service) updateLimit(ctx context.Context, userID id.UserID, policy models.BucketPolicy, fn func(*models.UserDecodeLimit, time.Time) error) error {
	retries := max(1, s.config.MaxUpdateRetries)
	var err error
	for range retries {
		err = s.tx.RunInTx(tx.WithPartition(ctx, "decode-limit:"+userID.String()), func(ctx context.Context) error {
			now := requestcontext.Now(ctx)
			limit, err := s.limits.GetByUserID(ctx, userID)
			created := errors.Is(err, sentinel.ErrNotFound)
			if created {
				limit = models.NewUserDecodeLimit(userID, policy, now)
			} else if err != nil {
				return err
			}
			if err := fn(limit, now); err != nil {
				return err
			}
			if created {
				return s.limits.Create(ctx, limit)
			}
			return s.limits.Update(ctx, limit)
		})
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errLimitReached):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConcurrentModification, "decode limit was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update decode limit")
	}
}

func (s *Service) emit(ctx context.Context, decoded *models.DecodedKey) error {
	err := s.events.Emit(ctx, models.DecodedKeyEvent{
		Name:         decoded.State.EventName(),
		DecodedKeyID: decoded.ID,
		UserID:       decoded.UserID,
		State:        decoded.State,
		KeyType:      decoded.KeyType,
		OccurredAt:   decoded.UpdatedAt,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit decoded key event")
	}
	return nil
}

func (s *Service) activeUser(ctx context.Context, userID id.UserID) (*ports.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "user is not active")
	}
	return user, nil
}

// cacheKey hashes the lookup so raw key values never reach the cache.
func cacheKey(keyType models.KeyType, value string) string {
	sum := blake2b.Sum256([]byte(string(keyType) + "|" + value))
	return hex.EncodeToString(sum[:])
}
