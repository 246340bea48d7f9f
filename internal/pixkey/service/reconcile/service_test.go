package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pixkeys/internal/pixkey/config"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/ports/mocks"
	"pixkeys/internal/pixkey/service/servicetest"
	id "pixkeys/pkg/domain"
)

const localISPB = "00000000"

type ReconcileSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	fx       *servicetest.Fixture
	registry *mocks.MockRegistryGateway
	service  *Service
	cfg      config.ReconcileConfig
	userID   id.UserID
}

func TestReconcileSuite(t *testing.T) {
	suite.Run(t, new(ReconcileSuite))
}

func (s *ReconcileSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fx = servicetest.New(s.T())
	s.registry = mocks.NewMockRegistryGateway(s.ctrl)
	s.userID = id.UserID(id.NewKeyID())

	s.cfg = config.DefaultConfig().Reconcile
	s.cfg.ScanBatchSize = 2
	s.cfg.ClaimPageSize = 2
	s.cfg.RegistryRPS = 1000

	svc, err := New(s.fx.Stores.Keys, s.fx.Stores.Claims, s.registry, s.fx.Events, s.fx.Events,
		WithLogger(s.fx.Logger),
		WithConfig(s.cfg, localISPB),
	)
	s.Require().NoError(err)
	s.service = svc
}

// =============================================================================
// Expiry
// =============================================================================

func (s *ReconcileSuite) TestExpireStale() {
	s.Run("only keys past their state timeout", func() {
		old := s.fx.SeedKey(s.userID, models.KeyTypeEmail, "a@example.com", models.StatePending)
		s.fx.SeedKey(s.userID, models.KeyTypeEVP, "", models.StateReady)
		s.fx.Advance(23 * time.Hour)
		s.fx.SeedKey(s.userID, models.KeyTypeEmail, "b@example.com", models.StatePending)
		s.fx.Advance(2 * time.Hour)

		n, err := s.service.ExpireStale(s.fx.Ctx())
		s.Require().NoError(err)
		s.Equal(1, n)

		expired := s.fx.Events.ExpiredEvents()
		s.Require().Len(expired, 1)
		s.Equal(old.ID, expired[0].KeyID)
		s.Equal("key.pending.expired", expired[0].Name)
		s.Equal(models.StatePending, s.fx.Key(old.ID).State)
	})

	s.Run("pages through more keys than one batch", func() {
		s.SetupTest()
		for range 5 {
			s.fx.SeedKey(s.userID, models.KeyTypePhone, "+5511987654321", models.StateClaimPending)
		}
		s.fx.Advance(8 * 24 * time.Hour)

		n, err := s.service.ExpireStale(s.fx.Ctx())
		s.Require().NoError(err)
		s.Equal(5, n)
		for _, e := range s.fx.Events.ExpiredEvents() {
			s.Equal("key.claim_pending.expired", e.Name)
		}
	})
}

func (s *ReconcileSuite) TestExpireOwnershipWaiting() {
	lapsed := s.fx.SeedKey(s.userID, models.KeyTypeEmail, "a@example.com", models.StateOwnershipWaiting)
	s.fx.SeedClaim(lapsed, models.ClaimOwnership, models.ParticipationClaimer)
	s.fx.Advance(6 * 24 * time.Hour)
	recent := s.fx.SeedKey(s.userID, models.KeyTypeEmail, "b@example.com", models.StateOwnershipWaiting)
	s.fx.SeedClaim(recent, models.ClaimOwnership, models.ParticipationClaimer)
	s.fx.SeedKey(s.userID, models.KeyTypeEmail, "c@example.com", models.StateOwnershipWaiting)
	s.fx.Advance(2 * 24 * time.Hour)

	n, err := s.service.ExpireOwnershipWaiting(s.fx.Ctx())
	s.Require().NoError(err)
	s.Equal(1, n)
	expired := s.fx.Events.ExpiredEvents()
	s.Require().Len(expired, 1)
	s.Equal(lapsed.ID, expired[0].KeyID)
	s.Equal("key.ownership_waiting.expired", expired[0].Name)
}

func (s *ReconcileSuite) TestExpireOwnershipWaitingPagesPastLocalClaimants() {
	for _, email := range []string{"a@example.com", "b@example.com"} {
		s.fx.SeedKey(s.userID, models.KeyTypeEmail, email, models.StateOwnershipWaiting)
	}
	s.fx.Advance(time.Second)
	remote := s.fx.SeedKey(s.userID, models.KeyTypeEmail, "c@example.com", models.StateOwnershipWaiting)
	s.fx.SeedClaim(remote, models.ClaimOwnership, models.ParticipationClaimer)
	s.fx.Advance(60 * 24 * time.Hour)

	n, err := s.service.ExpireOwnershipWaiting(s.fx.Ctx())
	s.Require().NoError(err)
	s.Equal(1, n)
	expired := s.fx.Events.ExpiredEvents()
	s.Require().Len(expired, 1)
	s.Equal(remote.ID, expired[0].KeyID)
}

// =============================================================================
// Claim sync
// =============================================================================

func (s *ReconcileSuite) TestSyncClaims() {
	unchanged := s.fx.SeedClaim(s.fx.SeedKey(s.userID, models.KeyTypeEmail, "a@example.com", models.StateReady),
		models.ClaimOwnership, models.ParticipationDonor)
	moved := s.fx.SeedClaim(s.fx.SeedKey(s.userID, models.KeyTypeEmail, "b@example.com", models.StateOwnershipWaiting),
		models.ClaimOwnership, models.ParticipationClaimer)
	fresh := &models.Claim{
		ID:          id.ClaimID(id.NewKeyID()),
		KeyValue:    "c@example.com",
		KeyType:     models.KeyTypeEmail,
		Kind:        models.ClaimPortability,
		Status:      models.ClaimStatusOpen,
		ClaimerISPB: "99999999",
		DonorISPB:   localISPB,
		OpenedAt:    s.fx.Now,
	}
	confirmed := moved.Clone()
	confirmed.Status = models.ClaimStatusConfirmed

	gomock.InOrder(
		s.registry.EXPECT().ListClaims(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ports.ListClaimsRequest) (*ports.ClaimList, error) {
				s.Equal(1, req.Page)
				s.Equal(2, req.Size)
				s.Equal(s.fx.Now.Add(-s.cfg.ClaimSyncWindow), req.From)
				return &ports.ClaimList{Items: []*models.Claim{unchanged.Clone(), confirmed}, HasNext: true}, nil
			}),
		s.registry.EXPECT().ListClaims(gomock.Any(), gomock.Any()).
			Return(&ports.ClaimList{Items: []*models.Claim{fresh}}, nil),
	)

	n, err := s.service.SyncClaims(s.fx.Ctx())
	s.Require().NoError(err)
	s.Equal(2, n)

	events := s.fx.Events.ClaimReadyEvents()
	s.Require().Len(events, 2)
	s.Equal(moved.ID, events[0].ClaimID)
	s.Equal(models.ClaimStatusConfirmed, events[0].Status)
	s.Equal(models.ClaimStatusOpen, events[0].Previous)
	s.Equal(fresh.ID, events[1].ClaimID)
	s.Equal(models.ParticipationDonor, events[1].Participation)

	s.Equal(models.ClaimStatusConfirmed, s.fx.Claim(moved.ID).Status)
	s.Equal(models.ParticipationDonor, s.fx.Claim(fresh.ID).Participation)
}

func (s *ReconcileSuite) TestSyncClaimsRegistryDown() {
	s.registry.EXPECT().ListClaims(gomock.Any(), gomock.Any()).
		Return(nil, ports.NewRegistryError(ports.RegistryOffline, "list claims", "down", nil))

	_, err := s.service.SyncClaims(s.fx.Ctx())
	s.Error(err)
	s.Empty(s.fx.Events.ClaimReadyEvents())
}

// =============================================================================
// Runner
// =============================================================================

func (s *ReconcileSuite) TestRunnerLocking() {
	runner, err := NewRunner(s.service, s.fx.Stores.Locker, s.fx.Logger)
	s.Require().NoError(err)
	s.Len(runner.Jobs(), 3)

	runs := 0
	job := Job{Name: "probe", Interval: time.Minute, Run: func(context.Context) (int, error) {
		runs++
		return 0, nil
	}}

	s.Run("runs when the lock is free", func() {
		s.Require().NoError(runner.RunOnce(s.fx.Ctx(), job))
		s.Equal(1, runs)
	})

	s.Run("skips while another replica holds the lock", func() {
		release, err := s.fx.Stores.Locker.TryLock(context.Background(), "reconcile:probe", time.Minute)
		s.Require().NoError(err)
		defer func() { _ = release(context.Background()) }()

		s.Require().NoError(runner.RunOnce(s.fx.Ctx(), job))
		s.Equal(1, runs)
	})
}
