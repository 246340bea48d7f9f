package decode

import (
	"context"
	"sync"
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
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/sentinel"
)

const remoteEmail = "loja@example.org"

type DecodeSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	fx        *servicetest.Fixture
	registry  *mocks.MockRegistryGateway
	users     *mocks.MockUserDirectory
	service   *Service
	cfg       config.DecodeConfig
	requester id.UserID
	holder    id.UserID
}

func TestDecodeSuite(t *testing.T) {
	suite.Run(t, new(DecodeSuite))
}

func (s *DecodeSuite) SetupTest() {
	cfg := config.DefaultConfig().Decode
	cfg.NaturalPersonCeiling = 3
	s.setup(cfg)
}

func (s *DecodeSuite) setup(cfg config.DecodeConfig) {
	s.ctrl = gomock.NewController(s.T())
	s.fx = servicetest.New(s.T())
	s.registry = mocks.NewMockRegistryGateway(s.ctrl)
	s.users = mocks.NewMockUserDirectory(s.ctrl)
	s.cfg = cfg
	s.requester = id.UserID(id.NewKeyID())
	s.holder = id.UserID(id.NewKeyID())

	s.users.EXPECT().GetUser(gomock.Any(), s.requester).Return(&ports.User{
		ID: s.requester, Active: true, PersonType: models.NaturalPerson, Document: "52998224725",
	}, nil).AnyTimes()
	s.users.EXPECT().GetUser(gomock.Any(), s.holder).Return(&ports.User{
		ID: s.holder, Active: true, PersonType: models.NaturalPerson, Document: "11144477735",
	}, nil).AnyTimes()

	svc, err := New(
		s.fx.Stores.Keys,
		s.fx.Stores.Decoded,
		s.fx.Stores.Limits,
		s.users,
		s.registry,
		s.fx.Events.Decoded(),
		s.fx.Stores.Tx,
		WithLogger(s.fx.Logger),
		WithConfig(cfg),
		WithCache(s.fx.Stores.Cache),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *DecodeSuite) request(value string) DecodeRequest {
	return DecodeRequest{
		ID:     id.DecodedKeyID(id.NewKeyID()),
		UserID: s.requester,
		Value:  value,
		Type:   models.KeyTypeEmail,
	}
}

func (s *DecodeSuite) remoteResult() *models.DecodeResult {
	return &models.DecodeResult{
		KeyValue: remoteEmail,
		KeyType:  models.KeyTypeEmail,
		Owner:    models.Owner{PersonType: models.LegalPerson, Document: "11222333000181", Name: "Loja LTDA"},
		Account:  models.Account{ISPB: "33333333", Branch: "0002", AccountNumber: "4455"},
	}
}

func (s *DecodeSuite) limit() int {
	l, err := s.fx.Stores.Limits.GetByUserID(context.Background(), s.requester)
	s.Require().NoError(err)
	return l.Limit
}

// =============================================================================
// Resolution
// =============================================================================

func (s *DecodeSuite) TestLocalHit() {
	s.Run("ready key of another user is served locally", func() {
		s.fx.SeedKey(s.holder, models.KeyTypeEmail, "maria@example.com", models.StateReady)

		got, err := s.service.Decode(s.fx.Ctx(), s.request("Maria@Example.com"))
		s.Require().NoError(err)
		s.True(got.Local)
		s.Equal(models.DecodedKeyPending, got.State)
		s.Equal("0001", got.Account.Branch)
		s.Equal(s.cfg.NaturalPersonCeiling-1, s.limit())

		events := s.fx.Events.DecodedEvents()
		s.Require().Len(events, 1)
		s.Equal("decoded_key.pending", events[0].Name)
	})

	s.Run("own key is refused", func() {
		s.SetupTest()
		s.fx.SeedKey(s.requester, models.KeyTypeEmail, "maria@example.com", models.StateReady)

		_, err := s.service.Decode(s.fx.Ctx(), s.request("maria@example.com"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(0, s.fx.Stores.Decoded.Len())
		s.Equal(s.cfg.NaturalPersonCeiling, s.limit(), "refused lookup is refunded")
	})

	s.Run("inactive holder falls through to the registry", func() {
		s.SetupTest()
		inactive := id.UserID(id.NewKeyID())
		s.users.EXPECT().GetUser(gomock.Any(), inactive).Return(&ports.User{ID: inactive, Active: false}, nil)
		s.fx.SeedKey(inactive, models.KeyTypeEmail, remoteEmail, models.StateReady)
		s.registry.EXPECT().DecodeKey(gomock.Any(), gomock.Any()).Return(s.remoteResult(), nil)

		got, err := s.service.Decode(s.fx.Ctx(), s.request(remoteEmail))
		s.Require().NoError(err)
		s.False(got.Local)
	})

	s.Run("same request id returns the first result", func() {
		s.SetupTest()
		s.registry.EXPECT().DecodeKey(gomock.Any(), gomock.Any()).Return(s.remoteResult(), nil).Times(1)
		req := s.request(remoteEmail)

		first, err := s.service.Decode(s.fx.Ctx(), req)
		s.Require().NoError(err)
		second, err := s.service.Decode(s.fx.Ctx(), req)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
		s.Equal(s.cfg.NaturalPersonCeiling-1, s.limit())
	})

	s.Run("unknown user", func() {
		s.SetupTest()
		stranger := id.UserID(id.NewKeyID())
		s.users.EXPECT().GetUser(gomock.Any(), stranger).Return(nil, sentinel.ErrNotFound)
		req := s.request(remoteEmail)
		req.UserID = stranger
		_, err := s.service.Decode(s.fx.Ctx(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid value", func() {
		s.SetupTest()
		_, err := s.service.Decode(s.fx.Ctx(), s.request("not-an-email"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DecodeSuite) TestRegistryCache() {
	s.Run("sequential lookups hit the cache", func() {
		s.registry.EXPECT().DecodeKey(gomock.Any(), ports.DecodeKeyRequest{
			Value: remoteEmail, Type: models.KeyTypeEmail, RequesterDocument: "52998224725",
		}).Return(s.remoteResult(), nil).Times(1)

		for range 2 {
			got, err := s.service.Decode(s.fx.Ctx(), s.request(remoteEmail))
			s.Require().NoError(err)
			s.Equal("Loja LTDA", got.Owner.Name)
		}
	})

	s.Run("concurrent lookups make one registry call", func() {
		cfg := s.cfg
		cfg.NaturalPersonCeiling = 100
		s.setup(cfg)
		s.registry.EXPECT().DecodeKey(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, ports.DecodeKeyRequest) (*models.DecodeResult, error) {
				time.Sleep(50 * time.Millisecond)
				return s.remoteResult(), nil
			}).Times(1)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.service.Decode(s.fx.Ctx(), s.request(remoteEmail))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			s.NoError(err)
		}
		s.Equal(8, s.fx.Stores.Decoded.Len())
	})
}

func (s *DecodeSuite) TestNotFound() {
	cfg := s.cfg
	cfg.NaturalPersonCeiling = 100
	s.setup(cfg)
	s.registry.EXPECT().DecodeKey(gomock.Any(), gomock.Any()).
		Return(nil, ports.NewRegistryError(ports.RegistryNotFound, "decode key", "no such key", nil))
	req := s.request(remoteEmail)

	_, err := s.service.Decode(s.fx.Ctx(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	stored, getErr := s.fx.Stores.Decoded.GetByID(context.Background(), req.ID)
	s.Require().NoError(getErr)
	s.Equal(models.DecodedKeyError, stored.State)
	s.Equal(100-cfg.InvalidPenalty, s.limit())
	s.Equal("decoded_key.error", s.fx.Events.DecodedEvents()[0].Name)
}

func (s *DecodeSuite) TestRegistryOffline() {
	s.registry.EXPECT().DecodeKey(gomock.Any(), gomock.Any()).
		Return(nil, ports.NewRegistryError(ports.RegistryOffline, "decode key", "down", nil))

	_, err := s.service.Decode(s.fx.Ctx(), s.request(remoteEmail))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(s.cfg.NaturalPersonCeiling, s.limit(), "registry outage is refunded")
	s.Equal(0, s.fx.Stores.Decoded.Len())
}

// =============================================================================
// Bucket
// =============================================================================

func (s *DecodeSuite) TestBucketExhaustionAndRefill() {
	s.fx.SeedKey(s.holder, models.KeyTypeEmail, "maria@example.com", models.StateReady)

	for range s.cfg.NaturalPersonCeiling {
		_, err := s.service.Decode(s.fx.Ctx(), s.request("maria@example.com"))
		s.Require().NoError(err)
	}
	_, err := s.service.Decode(s.fx.Ctx(), s.request("maria@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
	s.Equal(0, s.limit())

	s.fx.Advance(59 * time.Second)
	_, err = s.service.Decode(s.fx.Ctx(), s.request("maria@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	s.fx.Advance(time.Second)
	_, err = s.service.Decode(s.fx.Ctx(), s.request("maria@example.com"))
	s.Require().NoError(err)
	s.Equal(s.cfg.RefillIncrement-s.cfg.ValidCost, s.limit())
}

func (s *DecodeSuite) TestConcurrentDecodesShareOneBucket() {
	cfg := s.cfg
	cfg.NaturalPersonCeiling = 1
	s.setup(cfg)
	s.registry.EXPECT().DecodeKey(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, ports.DecodeKeyRequest) (*models.DecodeResult, error) {
			time.Sleep(50 * time.Millisecond)
			return s.remoteResult(), nil
		}).Times(1)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Decode(s.fx.Ctx(), s.request(remoteEmail))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, limited int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case dErrors.HasCode(err, dErrors.CodeRateLimited):
			limited++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(callers-1, limited)
	s.Equal(0, s.limit())
	s.Equal(1, s.fx.Stores.Decoded.Len())
}

func (s *DecodeSuite) TestConfirm() {
	s.fx.SeedKey(s.holder, models.KeyTypeEmail, "maria@example.com", models.StateReady)
	decoded, err := s.service.Decode(s.fx.Ctx(), s.request("maria@example.com"))
	s.Require().NoError(err)
	s.Equal(s.cfg.NaturalPersonCeiling-1, s.limit())

	got, err := s.service.Confirm(s.fx.Ctx(), s.requester, decoded.ID)
	s.Require().NoError(err)
	s.Equal(models.DecodedKeyConfirmed, got.State)
	s.Equal(s.cfg.NaturalPersonCeiling, s.limit())

	again, err := s.service.Confirm(s.fx.Ctx(), s.requester, decoded.ID)
	s.Require().NoError(err)
	s.Equal(models.DecodedKeyConfirmed, again.State)
	s.Len(s.fx.Events.DecodedEvents(), 2)

	_, err = s.service.Confirm(s.fx.Ctx(), s.holder, decoded.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
