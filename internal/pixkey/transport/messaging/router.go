package messaging

import (
	"context"
	"log/slog"
	"sort"

	"pixkeys/internal/platform/kafka/consumer"
)

// Router dispatches messages to topic-specific handlers.
type Router struct {
	handlers map[string]consumer.Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]consumer.Handler),
		logger:   logger,
	}
}

// Register adds a handler for a topic, replacing any earlier one.
func (r *Router) Register(topic string, handler consumer.Handler) {
	r.handlers[topic] = handler
}

// Topics returns the registered topics, sorted.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	handler, ok := r.handlers[msg.Topic]
	if !ok {
		r.logger.WarnContext(ctx, "no handler for topic, skipping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil
	}
	return handler.Handle(ctx, msg)
}
