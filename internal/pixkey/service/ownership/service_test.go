package ownership

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/pixkey/ports/mocks"
	"pixkeys/internal/pixkey/service/servicetest"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
)

const claimedEmail = "joao@example.com"

type OwnershipSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	fx       *servicetest.Fixture
	registry *mocks.MockRegistryGateway
	service  *Service
	claimant id.UserID
	holder   id.UserID
}

func TestOwnershipSuite(t *testing.T) {
	suite.Run(t, new(OwnershipSuite))
}

func (s *OwnershipSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fx = servicetest.New(s.T())
	s.registry = mocks.NewMockRegistryGateway(s.ctrl)
	s.claimant = id.UserID(id.NewKeyID())
	s.holder = id.UserID(id.NewKeyID())

	svc, err := New(s.fx.Machine, s.fx.Stores.Claims, s.registry,
		WithLogger(s.fx.Logger),
		WithAlerter(s.fx.Events),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *OwnershipSuite) registryClaim() *models.Claim {
	return &models.Claim{
		ID:          id.ClaimID(id.NewKeyID()),
		KeyValue:    claimedEmail,
		KeyType:     models.KeyTypeEmail,
		Status:      models.ClaimStatusOpen,
		ClaimerISPB: "00000000",
		DonorISPB:   "22222222",
	}
}

// =============================================================================
// Approval
// =============================================================================

func (s *OwnershipSuite) TestApproveStart() {
	s.Run("second approval returns the same key without a new event", func() {
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipPending)

		first, err := s.service.ApproveStart(s.fx.Ctx(), s.claimant, key.ID)
		s.Require().NoError(err)
		second, err := s.service.ApproveStart(s.fx.Ctx(), s.claimant, key.ID)
		s.Require().NoError(err)

		s.Equal(models.StateOwnershipOpened, second.State)
		s.Equal(first.Version, second.Version)
		s.Len(s.fx.Events.KeyEventsNamed("key.ownership_opened"), 1)
	})

	s.Run("only the claimant may approve", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipPending)
		_, err := s.service.ApproveStart(s.fx.Ctx(), s.holder, key.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// Opening
// =============================================================================

func (s *OwnershipSuite) TestOpened() {
	s.Run("local holder is claimed without the registry", func() {
		donor := s.fx.SeedKey(s.holder, models.KeyTypeEmail, claimedEmail, models.StateReady)
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipOpened)

		got, err := s.service.Opened(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)

		s.Equal(models.StateOwnershipWaiting, got.State)
		s.Nil(got.ClaimID)
		stored := s.fx.Key(donor.ID)
		s.Equal(models.StateClaimPending, stored.State)
		s.Len(stored.Code, 6)

		events := s.fx.Events.KeyEvents()
		s.Require().Len(events, 2)
		s.Equal("key.claim_pending", events[0].Name)
		s.Equal("key.ownership_waiting", events[1].Name)
	})

	s.Run("holder already claim pending keeps its code", func() {
		s.SetupTest()
		donor := s.fx.SeedKey(s.holder, models.KeyTypeEmail, claimedEmail, models.StateClaimPending)
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipOpened)

		got, err := s.service.Opened(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateOwnershipWaiting, got.State)
		s.Equal(donor.Version, s.fx.Key(donor.ID).Version)
	})

	s.Run("remote holder opens a registry claim", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipOpened)
		claim := s.registryClaim()
		s.registry.EXPECT().CreateOwnershipClaim(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req ports.ClaimRequest) (*models.Claim, error) {
				s.Equal(key.ID, req.KeyID)
				s.Equal(claimedEmail, req.KeyValue)
				return claim, nil
			})

		got, err := s.service.Opened(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)

		s.Equal(models.StateOwnershipStarted, got.State)
		s.Require().NotNil(got.ClaimID)
		stored := s.fx.Claim(*got.ClaimID)
		s.Equal(models.ParticipationClaimer, stored.Participation)
		s.Equal(models.ClaimOwnership, stored.Kind)
		s.Equal(s.fx.Now, stored.OpenedAt)
	})

	s.Run("more than two holders alerts and goes to the registry", func() {
		s.SetupTest()
		s.fx.SeedKey(s.holder, models.KeyTypeEmail, claimedEmail, models.StateReady)
		s.fx.SeedKey(id.UserID(id.NewKeyID()), models.KeyTypeEmail, claimedEmail, models.StateReady)
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipOpened)
		s.registry.EXPECT().CreateOwnershipClaim(gomock.Any(), gomock.Any()).Return(s.registryClaim(), nil)

		got, err := s.service.Opened(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateOwnershipStarted, got.State)

		conflicts := s.fx.Events.Conflicts()
		s.Require().Len(conflicts, 1)
		s.Len(conflicts[0].KeyIDs, 3)
	})

	s.Run("registry failure leaves the key opened", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipOpened)
		s.registry.EXPECT().CreateOwnershipClaim(gomock.Any(), gomock.Any()).
			Return(nil, ports.NewRegistryError(ports.RegistryLockedByClaim, "create ownership claim", "locked", nil))

		_, err := s.service.Opened(s.fx.Ctx(), key.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(models.StateOwnershipOpened, s.fx.Key(key.ID).State)
	})

	s.Run("wrong state is rejected without writes", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateReady)
		_, err := s.service.Opened(s.fx.Ctx(), key.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal(key.Version, s.fx.Key(key.ID).Version)
		s.Empty(s.fx.Events.KeyEvents())
	})
}

// =============================================================================
// Resolution
// =============================================================================

func (s *OwnershipSuite) TestRemoteClaimToReady() {
	key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipStarted)
	claim := s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationClaimer)

	got, err := s.service.Started(s.fx.Ctx(), key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateOwnershipWaiting, got.State)

	s.registry.EXPECT().FinishClaim(gomock.Any(), ports.ClaimActionRequest{ClaimID: claim.ID}).
		Return(&models.Claim{ID: claim.ID, Status: models.ClaimStatusCompleted}, nil)
	got, err = s.service.Waiting(s.fx.Ctx(), key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateOwnershipConfirmed, got.State)
	stored := s.fx.Claim(claim.ID)
	s.NotNil(stored.FinalResolutionAt)
	s.Equal(models.ClaimStatusCompleted, stored.Status)

	s.registry.EXPECT().CreateKey(gomock.Any(), gomock.Any()).
		Return(nil, ports.NewRegistryError(ports.RegistryDuplicate, "create key", "exists", nil))
	got, err = s.service.Confirmed(s.fx.Ctx(), key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateOwnershipReady, got.State)

	got, err = s.service.Ready(s.fx.Ctx(), key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateReady, got.State)
	s.NotNil(s.fx.Claim(claim.ID).ClosedAt)

	s.Equal([]models.KeyState{
		models.StateOwnershipWaiting,
		models.StateOwnershipConfirmed,
		models.StateOwnershipReady,
		models.StateReady,
	}, s.fx.States(key.ID))
}

func (s *OwnershipSuite) TestWaitingWithoutClaim() {
	key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipWaiting)

	got, err := s.service.Waiting(s.fx.Ctx(), key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateOwnershipConfirmed, got.State)
}

// =============================================================================
// Cancellation
// =============================================================================

func (s *OwnershipSuite) TestCancel() {
	s.Run("local donor goes back to ready", func() {
		donor := s.fx.SeedKey(s.holder, models.KeyTypeEmail, claimedEmail, models.StateClaimPending)
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipWaiting)

		got, err := s.service.Cancel(s.fx.Ctx(), s.claimant, key.ID, "changed my mind")
		s.Require().NoError(err)
		s.Equal(models.StateOwnershipCanceling, got.State)

		got, err = s.service.Canceled(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateOwnershipCanceled, got.State)
		s.NotNil(got.CanceledAt)
		s.Equal(models.StateReady, s.fx.Key(donor.ID).State)
	})

	s.Run("remote claim is cancelled at the registry", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipCanceling)
		claim := s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationClaimer)
		s.registry.EXPECT().CancelOwnershipClaim(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req ports.ClaimActionRequest) (*models.Claim, error) {
				s.Equal(claim.ID, req.ClaimID)
				s.Equal(servicetest.ClaimDocument, req.Document)
				s.NotEqual(key.Owner.Document, req.Document)
				return nil, nil
			})

		got, err := s.service.Canceled(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateOwnershipCanceled, got.State)
		s.True(s.fx.Claim(claim.ID).IsCancelled())
	})

	s.Run("expired pending claim is canceled", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipPending)
		got, err := s.service.HandlePendingExpired(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateOwnershipCanceling, got.State)
	})

	s.Run("confirmed claim can no longer be canceled", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.claimant, models.KeyTypeEmail, claimedEmail, models.StateOwnershipConfirmed)
		_, err := s.service.Canceling(s.fx.Ctx(), key.ID, "late")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}
