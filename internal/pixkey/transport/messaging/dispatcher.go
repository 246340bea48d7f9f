package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"pixkeys/internal/pixkey/metrics"
	"pixkeys/internal/platform/kafka/consumer"
	dErrors "pixkeys/pkg/domain-errors"
)

// Publisher writes a record to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// backoff returns the wait before attempt n+1, doubling from InitialBackoff.
func (p RetryPolicy) backoff(n int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < n && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Dispatcher wraps a handler with retries and dead-letter routing. It only
// returns an error when the record must not be committed: the context ended
// or the dead-letter publish failed.
type Dispatcher struct {
	next      consumer.Handler
	publisher Publisher
	policy    RetryPolicy
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type DispatcherOption func(*Dispatcher)

func WithRetryPolicy(p RetryPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		if p.MaxAttempts > 0 {
			d.policy = p
		}
	}
}

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(next consumer.Handler, publisher Publisher, opts ...DispatcherOption) (*Dispatcher, error) {
	if next == nil {
		return nil, errors.New("handler is required")
	}
	if publisher == nil {
		return nil, errors.New("dead-letter publisher is required")
	}
	d := &Dispatcher{
		next:      next,
		publisher: publisher,
		policy:    DefaultRetryPolicy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Dispatcher) Handle(ctx context.Context, msg *consumer.Message) error {
	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		err := d.next.Handle(ctx, msg)
		if err == nil {
			d.metrics.IncrementMessage(msg.Topic, "ok")
			return nil
		}
		if dErrors.IsClientError(err) {
			d.logger.WarnContext(ctx, "message rejected",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"code", string(dErrors.CodeOf(err)),
				"error", err,
			)
			d.metrics.IncrementMessage(msg.Topic, "rejected")
			return nil
		}
		lastErr = err
		if attempt == d.policy.MaxAttempts {
			break
		}
		d.logger.WarnContext(ctx, "message handling failed, retrying",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", err,
		)
		d.metrics.IncrementMessage(msg.Topic, "retried")
		if err := sleep(ctx, d.policy.backoff(attempt)); err != nil {
			return err
		}
	}
	return d.deadLetter(ctx, msg, lastErr)
}

func (d *Dispatcher) deadLetter(ctx context.Context, msg *consumer.Message, cause error) error {
	headers := make(map[string]string, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderError] = cause.Error()
	headers[HeaderAttempts] = strconv.Itoa(d.policy.MaxAttempts)

	topic := DeadLetterTopic(msg.Topic)
	if err := d.publisher.Publish(ctx, topic, msg.Key, msg.Value, headers); err != nil {
		return fmt.Errorf("dead-letter %s@%d: %w", msg.Topic, msg.Offset, err)
	}
	d.logger.ErrorContext(ctx, "message dead-lettered",
		"topic", msg.Topic,
		"dlq", topic,
		"offset", msg.Offset,
		"error", cause,
	)
	d.metrics.IncrementMessage(msg.Topic, "dead_lettered")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
