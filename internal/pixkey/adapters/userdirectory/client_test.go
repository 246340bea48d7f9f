package userdirectory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
)

func TestClient(t *testing.T) {
	userID := id.UserID(uuid.New())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/" + userID.String():
			_, _ = w.Write([]byte(`{"id":"` + userID.String() + `","active":true,"person_type":"NATURAL_PERSON","document":"52998224725"}`))
		case "/users/" + userID.String() + "/onboarding":
			_, _ = w.Write([]byte(`{"user_id":"` + userID.String() + `","branch":"0001","account_number":"123456"}`))
		case "/users/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("user", func(t *testing.T) {
		u, err := c.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.True(t, u.Active)
		assert.Equal(t, userID, u.ID)
		assert.Equal(t, models.NaturalPerson, u.PersonType)
	})

	t.Run("onboarding", func(t *testing.T) {
		o, err := c.GetOnboarding(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "0001", o.Branch)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		_, err := c.GetUser(ctx, id.UserID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("upstream failure", func(t *testing.T) {
		err := c.get(ctx, "/users/broken", &struct{}{})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
