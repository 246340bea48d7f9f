package claim

import (
	"context"
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

const heldPhone = "+5521987654321"

type ClaimSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	fx       *servicetest.Fixture
	registry *mocks.MockRegistryGateway
	service  *Service
	holder   id.UserID
	claimant id.UserID
}

func TestClaimSuite(t *testing.T) {
	suite.Run(t, new(ClaimSuite))
}

func (s *ClaimSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fx = servicetest.New(s.T())
	s.registry = mocks.NewMockRegistryGateway(s.ctrl)
	s.holder = id.UserID(id.NewKeyID())
	s.claimant = id.UserID(id.NewKeyID())

	svc, err := New(s.fx.Machine, s.fx.Stores.Claims, s.registry,
		WithLogger(s.fx.Logger),
		WithAlerter(s.fx.Events),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ClaimSuite) TestPending() {
	s.Run("ready key is held with a fresh code", func() {
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateReady)
		claimID := id.ClaimID(id.NewKeyID())

		got, err := s.service.Pending(s.fx.Ctx(), key.ID, claimID)
		s.Require().NoError(err)
		s.Equal(models.StateClaimPending, got.State)
		s.Equal(claimID, *got.ClaimID)
		s.Len(got.Code, 6)
	})

	s.Run("pending key cannot be claimed", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StatePending)
		_, err := s.service.Pending(s.fx.Ctx(), key.ID, id.ClaimID(id.NewKeyID()))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Denied
// =============================================================================

func (s *ClaimSuite) TestDenied() {
	s.Run("local claimant is canceled without the registry", func() {
		claimant := s.fx.SeedKey(s.claimant, models.KeyTypePhone, heldPhone, models.StateOwnershipWaiting)
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimDenied)

		got, err := s.service.Denied(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateReady, got.State)
		s.Equal(models.StateOwnershipCanceled, s.fx.Key(claimant.ID).State)
		s.Len(s.fx.Events.KeyEventsNamed("key.ownership_canceled"), 1)
	})

	s.Run("remote claim is denied at the registry", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimDenied)
		claim := s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationDonor)
		s.registry.EXPECT().DenyClaim(gomock.Any(), ports.ClaimActionRequest{
			ClaimID:  claim.ID,
			Document: servicetest.ClaimDocument,
		}).Return(&models.Claim{ID: claim.ID, Status: models.ClaimStatusCancelled}, nil)

		got, err := s.service.Denied(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateReady, got.State)
		s.Nil(got.ClaimID)
		s.True(s.fx.Claim(claim.ID).IsCancelled())
	})

	s.Run("claim without a document falls back to the key owner", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimDenied)
		claim := s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationDonor)
		claim.Document = ""
		s.Require().NoError(s.fx.Stores.Claims.Update(context.Background(), claim))
		s.registry.EXPECT().DenyClaim(gomock.Any(), ports.ClaimActionRequest{
			ClaimID:  claim.ID,
			Document: key.Owner.Document,
		}).Return(nil, nil)

		_, err := s.service.Denied(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
	})

	s.Run("registry failure keeps the key denied", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimDenied)
		s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationDonor)
		s.registry.EXPECT().DenyClaim(gomock.Any(), gomock.Any()).
			Return(nil, ports.NewRegistryError(ports.RegistryOffline, "deny claim", "down", nil))

		_, err := s.service.Denied(s.fx.Ctx(), key.ID)
		s.Error(err)
		s.Equal(models.StateClaimDenied, s.fx.Key(key.ID).State)
	})
}

// =============================================================================
// Closing
// =============================================================================

func (s *ClaimSuite) TestClosing() {
	s.Run("local claimant takes over the registry entry", func() {
		claimant := s.fx.SeedKey(s.claimant, models.KeyTypePhone, heldPhone, models.StateOwnershipWaiting)
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimClosing)

		gomock.InOrder(
			s.registry.EXPECT().DeleteKey(gomock.Any(), ports.DeleteKeyRequest{
				Value: heldPhone, Type: models.KeyTypePhone, Reason: "ownership claim",
			}).Return(nil),
			s.registry.EXPECT().CreateKey(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ any, req ports.CreateKeyRequest) (*ports.RegisteredKey, error) {
					s.Equal(claimant.ID, req.KeyID)
					return &ports.RegisteredKey{Value: heldPhone}, nil
				}),
		)

		got, err := s.service.Closing(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateClaimClosed, got.State)
		s.NotNil(got.CanceledAt)
		s.Equal(models.StateOwnershipReady, s.fx.Key(claimant.ID).State)
	})

	s.Run("remote claim is closed at the registry", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimClosing)
		claim := s.fx.SeedClaim(key, models.ClaimOwnership, models.ParticipationDonor)
		s.registry.EXPECT().CloseClaim(gomock.Any(), ports.ClaimActionRequest{
			ClaimID:  claim.ID,
			Document: servicetest.ClaimDocument,
		}).Return(nil, nil)

		got, err := s.service.Closing(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateClaimClosed, got.State)
		s.NotNil(s.fx.Claim(claim.ID).ClosedAt)
	})
}

func (s *ClaimSuite) TestCanceledAndExpired() {
	s.Run("withdrawn claim returns the key", func() {
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimPending)
		got, err := s.service.Canceled(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateReady, got.State)
		s.Empty(got.Code)
	})

	s.Run("expired hold moves to closing once", func() {
		s.SetupTest()
		key := s.fx.SeedKey(s.holder, models.KeyTypePhone, heldPhone, models.StateClaimPending)
		_, err := s.service.HandlePendingExpired(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		got, err := s.service.HandlePendingExpired(s.fx.Ctx(), key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateClaimClosing, got.State)
		s.Len(s.fx.Events.KeyEventsNamed("key.claim_closing"), 1)
	})
}
