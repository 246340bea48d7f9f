// Package servicetest wires in-memory stores and a recording emitter behind
// a key state machine for use case tests.
package servicetest

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pixkeys/internal/pixkey/adapters/events"
	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/service/keystate"
	"pixkeys/internal/pixkey/store/memory"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/requestcontext"
)

// Fixture is the shared harness. Now is the clock every Ctx call carries.
type Fixture struct {
	T       testing.TB
	Stores  *memory.Stores
	Events  *events.Recorder
	Machine *keystate.Machine
	Logger  *slog.Logger
	Now     time.Time
}

func New(t testing.TB) *Fixture {
	t.Helper()
	stores := memory.NewStores()
	recorder := events.NewRecorder()
	logger := slog.New(slog.DiscardHandler)
	machine, err := keystate.New(stores.Keys, stores.History, recorder, stores.Tx, keystate.WithLogger(logger))
	require.NoError(t, err)
	return &Fixture{
		T:       t,
		Stores:  stores,
		Events:  recorder,
		Machine: machine,
		Logger:  logger,
		Now:     time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}
}

// Ctx returns a request context pinned to the fixture clock.
func (f *Fixture) Ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), f.Now)
	return requestcontext.WithRequestID(ctx, "req-test")
}

func (f *Fixture) Advance(d time.Duration) {
	f.Now = f.Now.Add(d)
}

// SeedKey stores a key directly in state, bypassing the use cases.
func (f *Fixture) SeedKey(userID id.UserID, keyType models.KeyType, value string, state models.KeyState) *models.Key {
	f.T.Helper()
	key := &models.Key{
		ID:     id.NewKeyID(),
		UserID: userID,
		Type:   keyType,
		State:  state,
		Owner: models.Owner{
			PersonType: models.NaturalPerson,
			Document:   "52998224725",
			Name:       "Maria Souza",
		},
		Account: models.Account{
			ISPB:          "00000000",
			Branch:        "0001",
			AccountNumber: "123456",
			AccountType:   "CHECKING",
			OpenedAt:      f.Now.Add(-24 * time.Hour),
		},
		CreatedAt: f.Now,
		UpdatedAt: f.Now,
	}
	if value != "" {
		key.Value = models.StringPtr(value)
	}
	require.NoError(f.T, f.Stores.Keys.Create(context.Background(), key))
	// Distinct creation times keep created-at ordering deterministic.
	f.Advance(time.Second)
	return key
}

// Key reads the stored key.
func (f *Fixture) Key(keyID id.KeyID) *models.Key {
	f.T.Helper()
	key, err := f.Stores.Keys.GetByID(context.Background(), keyID)
	require.NoError(f.T, err)
	return key
}

// ClaimDocument is the document seeded claims are opened under. It differs
// from the seeded key owner's so tests can tell the two apart.
const ClaimDocument = "11144477735"

// SeedClaim stores a claim and links it to key.
func (f *Fixture) SeedClaim(key *models.Key, kind models.ClaimKind, participation models.Participation) *models.Claim {
	f.T.Helper()
	claim := &models.Claim{
		ID:            id.ClaimID(uuid.New()),
		KeyValue:      key.ValueOrEmpty(),
		KeyType:       key.Type,
		Kind:          kind,
		Status:        models.ClaimStatusOpen,
		Participation: participation,
		ClaimerISPB:   "11111111",
		DonorISPB:     "00000000",
		Document:      ClaimDocument,
		PersonType:    key.Owner.PersonType,
		OpenedAt:      f.Now,
		CreatedAt:     f.Now,
		UpdatedAt:     f.Now,
	}
	require.NoError(f.T, f.Stores.Claims.Create(context.Background(), claim))
	stored := f.Key(key.ID)
	stored.ClaimID = &claim.ID
	require.NoError(f.T, f.Stores.Keys.Update(context.Background(), stored))
	return claim
}

// Claim reads the stored claim.
func (f *Fixture) Claim(claimID id.ClaimID) *models.Claim {
	f.T.Helper()
	claim, err := f.Stores.Claims.GetByID(context.Background(), claimID)
	require.NoError(f.T, err)
	return claim
}

// States returns the states recorded in history for key, oldest first.
func (f *Fixture) States(keyID id.KeyID) []models.KeyState {
	f.T.Helper()
	entries, err := f.Stores.History.ListByKeyID(context.Background(), keyID)
	require.NoError(f.T, err)
	out := make([]models.KeyState, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.State)
	}
	return out
}
