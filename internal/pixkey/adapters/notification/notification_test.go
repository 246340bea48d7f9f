package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

type sent struct {
	topic string
	key   string
	value []byte
}

type capture struct {
	out []sent
}

func (c *capture) Publish(_ context.Context, topic string, key, value []byte, _ map[string]string) error {
	c.out = append(c.out, sent{topic: topic, key: string(key), value: value})
	return nil
}

func TestPublisher(t *testing.T) {
	ctx := requestcontext.WithRequestID(context.Background(), "req-3")

	t.Run("email", func(t *testing.T) {
		pub := &capture{}
		require.NoError(t, NewPublisher(pub).SendEmailCode(ctx, "ana@example.com", "123456"))
		require.Len(t, pub.out, 1)
		assert.Equal(t, "pixkeys.notifications.email", pub.out[0].topic)

		var msg codeMessage
		require.NoError(t, json.Unmarshal(pub.out[0].value, &msg))
		assert.Equal(t, "email", msg.Channel)
		assert.Equal(t, "123456", msg.Code)
		assert.Equal(t, "req-3", msg.RequestID)
	})

	t.Run("sms", func(t *testing.T) {
		pub := &capture{}
		require.NoError(t, NewPublisher(pub).SendSMSCode(ctx, "+5511999990000", "654321"))
		assert.Equal(t, "pixkeys.notifications.sms", pub.out[0].topic)
	})

	t.Run("rejects bad recipients", func(t *testing.T) {
		pub := &capture{}
		p := NewPublisher(pub)
		err := p.SendEmailCode(ctx, "not-an-email", "123456")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		err = p.SendSMSCode(ctx, "11 9999", "123456")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		err = p.SendEmailCode(ctx, "ana@example.com", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Empty(t, pub.out)
	})
}
