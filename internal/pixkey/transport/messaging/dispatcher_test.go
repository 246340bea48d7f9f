package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixkeys/internal/platform/kafka/consumer"
	dErrors "pixkeys/pkg/domain-errors"
)

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, key: key, value: value, headers: headers})
	return nil
}

// failing fails the first n calls with err, then succeeds.
type failing struct {
	n     int
	err   error
	calls int
}

func (f *failing) Handle(context.Context, *consumer.Message) error {
	f.calls++
	if f.calls <= f.n {
		return f.err
	}
	return nil
}

func noBackoff() DispatcherOption {
	return WithRetryPolicy(RetryPolicy{MaxAttempts: 5})
}

func newDispatcher(t *testing.T, next consumer.Handler, pub Publisher, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	opts = append([]DispatcherOption{noBackoff(), WithDispatcherLogger(slog.New(slog.DiscardHandler))}, opts...)
	d, err := NewDispatcher(next, pub, opts...)
	require.NoError(t, err)
	return d
}

func testMessage() *consumer.Message {
	return &consumer.Message{
		Topic:   "pixkeys.key.confirmed",
		Offset:  42,
		Key:     []byte("k1"),
		Value:   []byte(`{"key_id":"x"}`),
		Headers: map[string]string{"trace": "abc"},
	}
}

func TestDispatcher(t *testing.T) {
	t.Run("success commits after one attempt", func(t *testing.T) {
		h := &failing{}
		pub := &fakePublisher{}
		require.NoError(t, newDispatcher(t, h, pub).Handle(context.Background(), testMessage()))
		assert.Equal(t, 1, h.calls)
		assert.Empty(t, pub.sent)
	})

	t.Run("client errors are committed without retry", func(t *testing.T) {
		h := &failing{n: 10, err: dErrors.New(dErrors.CodeInvalidState, "key is READY")}
		pub := &fakePublisher{}
		require.NoError(t, newDispatcher(t, h, pub).Handle(context.Background(), testMessage()))
		assert.Equal(t, 1, h.calls)
		assert.Empty(t, pub.sent)
	})

	t.Run("transient errors retry until success", func(t *testing.T) {
		h := &failing{n: 2, err: dErrors.New(dErrors.CodeUnavailable, "registry offline")}
		pub := &fakePublisher{}
		require.NoError(t, newDispatcher(t, h, pub).Handle(context.Background(), testMessage()))
		assert.Equal(t, 3, h.calls)
		assert.Empty(t, pub.sent)
	})

	t.Run("exhausted retries go to the dead-letter topic", func(t *testing.T) {
		h := &failing{n: 100, err: errors.New("db down")}
		pub := &fakePublisher{}
		msg := testMessage()
		require.NoError(t, newDispatcher(t, h, pub).Handle(context.Background(), msg))

		assert.Equal(t, 5, h.calls)
		require.Len(t, pub.sent, 1)
		sent := pub.sent[0]
		assert.Equal(t, "pixkeys.key.confirmed.dlq", sent.topic)
		assert.Equal(t, msg.Key, sent.key)
		assert.Equal(t, msg.Value, sent.value)
		assert.Equal(t, "5", sent.headers[HeaderAttempts])
		assert.Equal(t, "db down", sent.headers[HeaderError])
		assert.Equal(t, "abc", sent.headers["trace"])
		assert.NotContains(t, msg.Headers, HeaderError, "original headers untouched")
	})

	t.Run("dead-letter failure blocks the commit", func(t *testing.T) {
		h := &failing{n: 100, err: errors.New("db down")}
		pub := &fakePublisher{err: errors.New("broker gone")}
		err := newDispatcher(t, h, pub).Handle(context.Background(), testMessage())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker gone")
	})

	t.Run("cancellation during backoff stops without committing", func(t *testing.T) {
		h := &failing{n: 100, err: errors.New("db down")}
		pub := &fakePublisher{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := newDispatcher(t, h, pub, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Hour}))
		err := d.Handle(ctx, testMessage())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, pub.sent)
	})
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	_, err := NewDispatcher(nil, &fakePublisher{})
	assert.Error(t, err)
	_, err = NewDispatcher(&failing{}, nil)
	assert.Error(t, err)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.backoff(3))
	assert.Equal(t, 300*time.Millisecond, p.backoff(4))
}

func TestRouter(t *testing.T) {
	r := NewRouter(slog.New(slog.DiscardHandler))
	var hit string
	r.Register("b", consumer.HandlerFunc(func(_ context.Context, m *consumer.Message) error {
		hit = m.Topic
		return nil
	}))
	r.Register("a", consumer.HandlerFunc(func(context.Context, *consumer.Message) error {
		return errors.New("a failed")
	}))

	assert.Equal(t, []string{"a", "b"}, r.Topics())
	require.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "b"}))
	assert.Equal(t, "b", hit)
	assert.Error(t, r.Handle(context.Background(), &consumer.Message{Topic: "a"}))
	assert.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "unknown"}), "unknown topics are committed")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "pixkeys.key.ownership_opened", KeyTopic("OWNERSHIP_OPENED"))
	assert.Equal(t, "pixkeys.key.pending.expired", ExpiredTopic("PENDING"))
	assert.Equal(t, "pixkeys.decoded_key.error", DecodedTopic("ERROR"))
	assert.True(t, IsDeadLetterTopic(DeadLetterTopic(TopicClaimReady)))
	assert.Contains(t, OutboundTopics(), TopicIntegrityAlerts)
}

func TestProvisionTopics(t *testing.T) {
	consumed := []string{TopicClaimReady, KeyTopic("CONFIRMED")}
	topics := ProvisionTopics(consumed)

	assert.Contains(t, topics, DeadLetterTopic(TopicClaimReady))
	assert.Contains(t, topics, DeadLetterTopic(KeyTopic("CONFIRMED")))
	assert.Contains(t, topics, TopicNotifyEmail)
	assert.NotContains(t, topics, DeadLetterTopic(TopicNotifyEmail), "outbound topics get no dead-letter topic")

	seen := map[string]int{}
	for _, topic := range topics {
		seen[topic]++
	}
	assert.Equal(t, 1, seen[KeyTopic("CONFIRMED")], "consumed key topics are listed once")
}
