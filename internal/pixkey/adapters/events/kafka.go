package events

import (
	"context"
	"encoding/json"
	"fmt"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/transport/messaging"
	"pixkeys/pkg/requestcontext"
)

// Broker publishes every event as JSON on its own topic, keyed by the
// aggregate id so one key's events stay ordered on one partition.
type Broker struct {
	publisher messaging.Publisher
}

func NewBroker(publisher messaging.Publisher) *Broker {
	return &Broker{publisher: publisher}
}

func (b *Broker) publish(ctx context.Context, topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}
	var headers map[string]string
	if rid := requestcontext.RequestID(ctx); rid != "" {
		headers = map[string]string{"request_id": rid}
	}
	return b.publisher.Publish(ctx, topic, []byte(key), value, headers)
}

func (b *Broker) Emit(ctx context.Context, event models.KeyEvent) error {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return b.publish(ctx, messaging.EventTopic(event.Name), event.KeyID.String(), event)
}

func (b *Broker) EmitExpired(ctx context.Context, event models.ExpiredEvent) error {
	return b.publish(ctx, messaging.EventTopic(event.Name), event.KeyID.String(), event)
}

func (b *Broker) EmitClaimReady(ctx context.Context, event models.ClaimReadyEvent) error {
	return b.publish(ctx, messaging.TopicClaimReady, event.ClaimID.String(), event)
}

func (b *Broker) KeyHolderConflict(ctx context.Context, conflict models.KeyHolderConflict) error {
	return b.publish(ctx, messaging.TopicIntegrityAlerts, conflict.KeyValue, conflict)
}

// Decoded adapts the broker to the decoded-key emitter port.
func (b *Broker) Decoded() *DecodedBroker {
	return &DecodedBroker{b: b}
}

type DecodedBroker struct {
	b *Broker
}

func (d *DecodedBroker) Emit(ctx context.Context, event models.DecodedKeyEvent) error {
	return d.b.publish(ctx, messaging.EventTopic(event.Name), event.DecodedKeyID.String(), event)
}
