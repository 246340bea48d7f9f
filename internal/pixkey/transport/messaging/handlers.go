package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/platform/kafka/consumer"
	id "pixkeys/pkg/domain"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

type LifecycleUseCases interface {
	HandleConfirmed(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	HandleDeleting(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error)
}

type OwnershipUseCases interface {
	Opened(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Started(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Waiting(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Confirmed(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Ready(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Canceling(ctx context.Context, keyID id.KeyID, reason string) (*models.Key, error)
	Canceled(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error)
}

type PortabilityUseCases interface {
	Opened(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Started(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Confirmed(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Ready(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Canceled(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	RemoteCanceled(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error)

	RequestReceived(ctx context.Context, keyID id.KeyID, claimID id.ClaimID) (*models.Key, error)
	ConfirmOpened(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	CancelOpened(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	ConfirmStarted(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	CancelStarted(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	HandleRequestExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error)
}

type ClaimUseCases interface {
	Pending(ctx context.Context, keyID id.KeyID, claimID id.ClaimID) (*models.Key, error)
	Denied(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Closing(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	Canceled(ctx context.Context, keyID id.KeyID) (*models.Key, error)
	HandlePendingExpired(ctx context.Context, keyID id.KeyID) (*models.Key, error)
}

// keyPayload is the common shape of key and expired events.
type keyPayload struct {
	KeyID     id.KeyID `json:"key_id"`
	Reason    string   `json:"reason,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

type keyStep func(ctx context.Context, keyID id.KeyID) (*models.Key, error)

// keyHandler decodes a key event and runs one use case step for it.
type keyHandler struct {
	step   keyStep
	logger *slog.Logger
}

func (h keyHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var p keyPayload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed key event")
	}
	if p.KeyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "key event without key_id")
	}
	ctx = requestcontext.WithKeyID(ctx, p.KeyID)
	if p.RequestID != "" {
		ctx = requestcontext.WithRequestID(ctx, p.RequestID)
	}
	key, err := h.step(ctx, p.KeyID)
	if err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "key event handled",
		"topic", msg.Topic,
		"key_id", p.KeyID.String(),
		"state", string(key.State),
	)
	return nil
}

// UseCases groups what the router needs to serve every inbound topic.
type UseCases struct {
	Lifecycle   LifecycleUseCases
	Ownership   OwnershipUseCases
	Portability PortabilityUseCases
	Claim       ClaimUseCases
}

// Bindings returns the topic-to-step table for key and expired events.
func (u UseCases) Bindings() map[string]keyStep {
	return map[string]keyStep{
		KeyTopic(models.StateConfirmed):   u.Lifecycle.HandleConfirmed,
		KeyTopic(models.StateDeleting):    u.Lifecycle.HandleDeleting,
		ExpiredTopic(models.StatePending): u.Lifecycle.HandlePendingExpired,

		KeyTopic(models.StateOwnershipOpened):      u.Ownership.Opened,
		KeyTopic(models.StateOwnershipStarted):     u.Ownership.Started,
		KeyTopic(models.StateOwnershipConfirmed):   u.Ownership.Confirmed,
		KeyTopic(models.StateOwnershipReady):       u.Ownership.Ready,
		KeyTopic(models.StateOwnershipCanceling):   u.Ownership.Canceled,
		ExpiredTopic(models.StateOwnershipWaiting): u.Ownership.Waiting,
		ExpiredTopic(models.StateOwnershipPending): u.Ownership.HandlePendingExpired,

		KeyTopic(models.StatePortabilityOpened):      u.Portability.Opened,
		KeyTopic(models.StatePortabilityConfirmed):   u.Portability.Confirmed,
		KeyTopic(models.StatePortabilityReady):       u.Portability.Ready,
		KeyTopic(models.StatePortabilityCanceling):   u.Portability.Canceled,
		ExpiredTopic(models.StatePortabilityPending): u.Portability.HandlePendingExpired,

		KeyTopic(models.StatePortabilityRequestConfirmOpened):  u.Portability.ConfirmOpened,
		KeyTopic(models.StatePortabilityRequestCancelOpened):   u.Portability.CancelOpened,
		KeyTopic(models.StatePortabilityRequestConfirmStarted): u.Portability.ConfirmStarted,
		KeyTopic(models.StatePortabilityRequestCancelStarted):  u.Portability.CancelStarted,
		ExpiredTopic(models.StatePortabilityRequestPending):    u.Portability.HandleRequestExpired,

		KeyTopic(models.StateClaimDenied):      u.Claim.Denied,
		KeyTopic(models.StateClaimClosing):     u.Claim.Closing,
		ExpiredTopic(models.StateClaimPending): u.Claim.HandlePendingExpired,
	}
}

// Register binds every key and expired topic on r, plus the claim-ready topic
// when claims is non-nil.
func (u UseCases) Register(r *Router, claims *ClaimReadyHandler) {
	for topic, step := range u.Bindings() {
		r.Register(topic, keyHandler{step: step, logger: r.logger})
	}
	if claims != nil {
		r.Register(TopicClaimReady, claims)
	}
}
