package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixkeys/internal/platform/kafka/consumer"
)

func TestRecordOrdersHeaders(t *testing.T) {
	rec := Record("pixkeys.key.ready", []byte("k"), []byte(`{}`), map[string]string{
		"x-error":    "boom",
		"x-attempts": "5",
	})

	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "x-attempts", rec.Headers[0].Key)
	assert.Equal(t, "x-error", rec.Headers[1].Key)

	msg := consumer.FromRecord(rec)
	assert.Equal(t, "pixkeys.key.ready", msg.Topic)
	assert.Equal(t, "5", msg.Header("x-attempts"))
	assert.Equal(t, "boom", msg.Header("x-error"))
	assert.Empty(t, msg.Header("missing"))
}

func TestRecordWithoutHeaders(t *testing.T) {
	rec := Record("t", nil, []byte("v"), nil)
	assert.Nil(t, rec.Headers)
	assert.Nil(t, consumer.FromRecord(rec).Headers)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
