package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/requestcontext"
)

type record struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type capture struct {
	records []record
}

func (c *capture) Publish(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	c.records = append(c.records, record{topic: topic, key: string(key), value: value, headers: headers})
	return nil
}

func TestBrokerTopics(t *testing.T) {
	pub := &capture{}
	b := NewBroker(pub)
	ctx := requestcontext.WithRequestID(context.Background(), "req-9")
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	keyID := id.NewKeyID()
	key := &models.Key{ID: keyID, State: models.StateOwnershipOpened}

	require.NoError(t, b.Emit(ctx, models.NewKeyEvent(key, models.StateOwnershipPending, "approved", now)))
	require.NoError(t, b.EmitExpired(ctx, models.ExpiredEvent{Name: models.ExpiredEventName(models.StatePending), KeyID: keyID}))
	require.NoError(t, b.EmitClaimReady(ctx, models.ClaimReadyEvent{ClaimID: id.ClaimID(uuid.New())}))
	require.NoError(t, b.KeyHolderConflict(ctx, models.KeyHolderConflict{KeyValue: "ana@example.com"}))
	require.NoError(t, b.Decoded().Emit(ctx, models.DecodedKeyEvent{Name: models.DecodedKeyError.EventName()}))

	require.Len(t, pub.records, 5)
	assert.Equal(t, "pixkeys.key.ownership_opened", pub.records[0].topic)
	assert.Equal(t, keyID.String(), pub.records[0].key)
	assert.Equal(t, "req-9", pub.records[0].headers["request_id"])
	assert.Equal(t, "pixkeys.key.pending.expired", pub.records[1].topic)
	assert.Equal(t, "pixkeys.claim.ready", pub.records[2].topic)
	assert.Equal(t, "pixkeys.integrity.alerts", pub.records[3].topic)
	assert.Equal(t, "ana@example.com", pub.records[3].key)
	assert.Equal(t, "pixkeys.decoded_key.error", pub.records[4].topic)

	var decoded models.KeyEvent
	require.NoError(t, json.Unmarshal(pub.records[0].value, &decoded))
	assert.Equal(t, keyID, decoded.KeyID)
	assert.Equal(t, "req-9", decoded.RequestID, "request id copied from context")
	assert.Equal(t, models.StateOwnershipPending, decoded.Previous)
}
