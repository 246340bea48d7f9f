package messaging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/service/servicetest"
	"pixkeys/internal/pixkey/transport/messaging"
	"pixkeys/internal/platform/kafka/consumer"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
)

// calls records which use case step ran for which key.
type calls struct {
	mu   sync.Mutex
	seen []string
	keys []id.KeyID
}

func (c *calls) hit(name string, keyID id.KeyID) (*models.Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, name)
	c.keys = append(c.keys, keyID)
	return &models.Key{ID: keyID, State: models.StateReady}, nil
}

func (c *calls) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) == 0 {
		return ""
	}
	return c.seen[len(c.seen)-1]
}

type lifecycleFake struct{ *calls }

func (f lifecycleFake) HandleConfirmed(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("lifecycle.HandleConfirmed", k)
}
func (f lifecycleFake) HandleDeleting(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("lifecycle.HandleDeleting", k)
}
func (f lifecycleFake) HandlePendingExpired(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("lifecycle.HandlePendingExpired", k)
}

type ownershipFake struct{ *calls }

func (f ownershipFake) Opened(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.Opened", k)
}
func (f ownershipFake) Started(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.Started", k)
}
func (f ownershipFake) Waiting(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.Waiting", k)
}
func (f ownershipFake) Confirmed(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.Confirmed", k)
}
func (f ownershipFake) Ready(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.Ready", k)
}
func (f ownershipFake) Canceling(_ context.Context, k id.KeyID, _ string) (*models.Key, error) {
	return f.hit("ownership.Canceling", k)
}
func (f ownershipFake) Canceled(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.Canceled", k)
}
func (f ownershipFake) HandlePendingExpired(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("ownership.HandlePendingExpired", k)
}

type portabilityFake struct{ *calls }

func (f portabilityFake) Opened(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.Opened", k)
}
func (f portabilityFake) Started(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.Started", k)
}
func (f portabilityFake) Confirmed(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.Confirmed", k)
}
func (f portabilityFake) Ready(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.Ready", k)
}
func (f portabilityFake) Canceled(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.Canceled", k)
}
func (f portabilityFake) RemoteCanceled(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.RemoteCanceled", k)
}
func (f portabilityFake) HandlePendingExpired(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.HandlePendingExpired", k)
}
func (f portabilityFake) RequestReceived(_ context.Context, k id.KeyID, _ id.ClaimID) (*models.Key, error) {
	return f.hit("portability.RequestReceived", k)
}
func (f portabilityFake) ConfirmOpened(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.ConfirmOpened", k)
}
func (f portabilityFake) CancelOpened(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.CancelOpened", k)
}
func (f portabilityFake) ConfirmStarted(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.ConfirmStarted", k)
}
func (f portabilityFake) CancelStarted(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.CancelStarted", k)
}
func (f portabilityFake) HandleRequestExpired(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("portability.HandleRequestExpired", k)
}

type claimFake struct{ *calls }

func (f claimFake) Pending(_ context.Context, k id.KeyID, _ id.ClaimID) (*models.Key, error) {
	return f.hit("claim.Pending", k)
}
func (f claimFake) Denied(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("claim.Denied", k)
}
func (f claimFake) Closing(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("claim.Closing", k)
}
func (f claimFake) Canceled(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("claim.Canceled", k)
}
func (f claimFake) HandlePendingExpired(_ context.Context, k id.KeyID) (*models.Key, error) {
	return f.hit("claim.HandlePendingExpired", k)
}

type HandlersSuite struct {
	suite.Suite
	fx       *servicetest.Fixture
	calls    *calls
	useCases messaging.UseCases
	router   *messaging.Router
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.fx = servicetest.New(s.T())
	s.calls = &calls{}
	s.useCases = messaging.UseCases{
		Lifecycle:   lifecycleFake{s.calls},
		Ownership:   ownershipFake{s.calls},
		Portability: portabilityFake{s.calls},
		Claim:       claimFake{s.calls},
	}
	claims, err := messaging.NewClaimReadyHandler(s.fx.Stores.Keys, s.useCases, slog.New(slog.DiscardHandler))
	s.Require().NoError(err)
	s.router = messaging.NewRouter(slog.New(slog.DiscardHandler))
	s.useCases.Register(s.router, claims)
}

func (s *HandlersSuite) send(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	return s.router.Handle(s.fx.Ctx(), &consumer.Message{Topic: topic, Value: raw})
}

// =============================================================================
// Key and expired events
// =============================================================================

func (s *HandlersSuite) TestKeyEventsReachTheirStep() {
	cases := map[string]string{
		messaging.KeyTopic(models.StateConfirmed):                        "lifecycle.HandleConfirmed",
		messaging.KeyTopic(models.StateDeleting):                         "lifecycle.HandleDeleting",
		messaging.ExpiredTopic(models.StatePending):                      "lifecycle.HandlePendingExpired",
		messaging.KeyTopic(models.StateOwnershipOpened):                  "ownership.Opened",
		messaging.KeyTopic(models.StateOwnershipStarted):                 "ownership.Started",
		messaging.KeyTopic(models.StateOwnershipConfirmed):               "ownership.Confirmed",
		messaging.KeyTopic(models.StateOwnershipReady):                   "ownership.Ready",
		messaging.KeyTopic(models.StateOwnershipCanceling):               "ownership.Canceled",
		messaging.ExpiredTopic(models.StateOwnershipWaiting):             "ownership.Waiting",
		messaging.ExpiredTopic(models.StateOwnershipPending):             "ownership.HandlePendingExpired",
		messaging.KeyTopic(models.StatePortabilityOpened):                "portability.Opened",
		messaging.KeyTopic(models.StatePortabilityConfirmed):             "portability.Confirmed",
		messaging.KeyTopic(models.StatePortabilityReady):                 "portability.Ready",
		messaging.KeyTopic(models.StatePortabilityCanceling):             "portability.Canceled",
		messaging.ExpiredTopic(models.StatePortabilityPending):           "portability.HandlePendingExpired",
		messaging.KeyTopic(models.StatePortabilityRequestConfirmOpened):  "portability.ConfirmOpened",
		messaging.KeyTopic(models.StatePortabilityRequestCancelOpened):   "portability.CancelOpened",
		messaging.KeyTopic(models.StatePortabilityRequestConfirmStarted): "portability.ConfirmStarted",
		messaging.KeyTopic(models.StatePortabilityRequestCancelStarted):  "portability.CancelStarted",
		messaging.ExpiredTopic(models.StatePortabilityRequestPending):    "portability.HandleRequestExpired",
		messaging.KeyTopic(models.StateClaimDenied):                      "claim.Denied",
		messaging.KeyTopic(models.StateClaimClosing):                     "claim.Closing",
		messaging.ExpiredTopic(models.StateClaimPending):                 "claim.HandlePendingExpired",
	}
	for topic, want := range cases {
		s.Run(topic, func() {
			keyID := id.NewKeyID()
			s.Require().NoError(s.send(topic, map[string]any{"key_id": keyID.String()}))
			s.Equal(want, s.calls.last())
			s.Equal(keyID, s.calls.keys[len(s.calls.keys)-1])
		})
	}
}

func (s *HandlersSuite) TestEveryBindingIsRegistered() {
	s.Contains(s.router.Topics(), messaging.TopicClaimReady)
	s.Len(s.router.Topics(), len(s.useCases.Bindings())+1)
}

func (s *HandlersSuite) TestMalformedKeyEventsAreClientErrors() {
	s.Run("not json", func() {
		err := s.router.Handle(s.fx.Ctx(), &consumer.Message{Topic: messaging.KeyTopic(models.StateConfirmed), Value: []byte("{")})
		s.True(dErrors.IsClientError(err))
	})
	s.Run("missing key id", func() {
		err := s.send(messaging.KeyTopic(models.StateConfirmed), map[string]any{"reason": "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("bad key id", func() {
		err := s.send(messaging.KeyTopic(models.StateConfirmed), map[string]any{"key_id": "nope"})
		s.True(dErrors.IsClientError(err))
	})
	s.Empty(s.calls.seen)
}

// =============================================================================
// Claim ready
// =============================================================================

func (s *HandlersSuite) claimEvent(claimID id.ClaimID, value string, kind models.ClaimKind, status models.ClaimStatus, side models.Participation) models.ClaimReadyEvent {
	return models.ClaimReadyEvent{
		ClaimID:       claimID,
		KeyValue:      value,
		Kind:          kind,
		Status:        status,
		Participation: side,
		OccurredAt:    s.fx.Now,
	}
}

func (s *HandlersSuite) TestClaimerStatusChanges() {
	cases := []struct {
		kind   models.ClaimKind
		status models.ClaimStatus
		want   string
	}{
		{models.ClaimPortability, models.ClaimStatusConfirmed, "portability.Started"},
		{models.ClaimOwnership, models.ClaimStatusConfirmed, "ownership.Waiting"},
		{models.ClaimPortability, models.ClaimStatusCancelled, "portability.RemoteCanceled"},
		{models.ClaimOwnership, models.ClaimStatusCancelled, "ownership.Canceling"},
		{models.ClaimPortability, models.ClaimStatusCompleted, "portability.Ready"},
		{models.ClaimOwnership, models.ClaimStatusCompleted, "ownership.Ready"},
	}
	for _, tc := range cases {
		s.Run(string(tc.kind)+"/"+string(tc.status), func() {
			key := s.fx.SeedKey(id.UserID(id.NewKeyID()), models.KeyTypeEmail, "ana@example.com", models.StatePortabilityStarted)
			claim := s.fx.SeedClaim(key, tc.kind, models.ParticipationClaimer)

			s.Require().NoError(s.send(messaging.TopicClaimReady, s.claimEvent(claim.ID, "ana@example.com", tc.kind, tc.status, models.ParticipationClaimer)))
			s.Equal(tc.want, s.calls.last())
			s.Equal(key.ID, s.calls.keys[len(s.calls.keys)-1])
		})
	}
}

func (s *HandlersSuite) TestDonorOpenTargetsTheReadyHolder() {
	user := id.UserID(id.NewKeyID())
	s.fx.SeedKey(user, models.KeyTypeEmail, "bia@example.com", models.StateOwnershipWaiting)
	donor := s.fx.SeedKey(user, models.KeyTypeEmail, "bia@example.com", models.StateReady)
	claimID := id.ClaimID(id.NewKeyID())

	s.Require().NoError(s.send(messaging.TopicClaimReady, s.claimEvent(claimID, "bia@example.com", models.ClaimOwnership, models.ClaimStatusOpen, models.ParticipationDonor)))
	s.Equal("claim.Pending", s.calls.last())
	s.Equal(donor.ID, s.calls.keys[0])

	s.Require().NoError(s.send(messaging.TopicClaimReady, s.claimEvent(claimID, "bia@example.com", models.ClaimPortability, models.ClaimStatusOpen, models.ParticipationDonor)))
	s.Equal("portability.RequestReceived", s.calls.last())
}

func (s *HandlersSuite) TestDonorCancelledOwnership() {
	key := s.fx.SeedKey(id.UserID(id.NewKeyID()), models.KeyTypePhone, "+5511999990000", models.StateClaimPending)
	claim := s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationDonor)

	s.Require().NoError(s.send(messaging.TopicClaimReady, s.claimEvent(claim.ID, "+5511999990000", models.ClaimOwnership, models.ClaimStatusCancelled, models.ParticipationDonor)))
	s.Equal("claim.Canceled", s.calls.last())
}

func (s *HandlersSuite) TestClaimEventsWithNothingToDoAreCommitted() {
	s.Run("unknown claim", func() {
		err := s.send(messaging.TopicClaimReady, s.claimEvent(id.ClaimID(id.NewKeyID()), "x@example.com", models.ClaimOwnership, models.ClaimStatusConfirmed, models.ParticipationClaimer))
		s.NoError(err)
	})
	s.Run("no local ready holder", func() {
		err := s.send(messaging.TopicClaimReady, s.claimEvent(id.ClaimID(id.NewKeyID()), "nobody@example.com", models.ClaimOwnership, models.ClaimStatusOpen, models.ParticipationDonor))
		s.NoError(err)
	})
	s.Run("status without a step", func() {
		err := s.send(messaging.TopicClaimReady, s.claimEvent(id.ClaimID(id.NewKeyID()), "x@example.com", models.ClaimOwnership, models.ClaimStatusWaitingResolution, models.ParticipationDonor))
		s.NoError(err)
	})
	s.Empty(s.calls.seen)
}

func (s *HandlersSuite) TestMalformedClaimEvents() {
	s.Run("missing claim id", func() {
		err := s.send(messaging.TopicClaimReady, map[string]any{"status": "OPEN"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("unknown participation", func() {
		err := s.send(messaging.TopicClaimReady, s.claimEvent(id.ClaimID(id.NewKeyID()), "x", models.ClaimOwnership, models.ClaimStatusOpen, "MEDIATOR"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
