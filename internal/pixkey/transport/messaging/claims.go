package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/internal/platform/kafka/consumer"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/requestcontext"
)

// ClaimReadyHandler turns a registry claim status change into the use case
// step for the local key on the matching side of the claim.
type ClaimReadyHandler struct {
	keys     ports.KeyRepository
	useCases UseCases
	logger   *slog.Logger
}

func NewClaimReadyHandler(keys ports.KeyRepository, useCases UseCases, logger *slog.Logger) (*ClaimReadyHandler, error) {
	if keys == nil {
		return nil, errors.New("keys repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimReadyHandler{keys: keys, useCases: useCases, logger: logger}, nil
}

func (h *ClaimReadyHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var event models.ClaimReadyEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed claim event")
	}
	if event.ClaimID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "claim event without claim_id")
	}

	var err error
	switch event.Participation {
	case models.ParticipationClaimer:
		err = h.claimer(ctx, event)
	case models.ParticipationDonor:
		err = h.donor(ctx, event)
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown participation %q", event.Participation)
	}
	if errors.Is(err, errSkip) {
		h.logger.InfoContext(ctx, "claim event ignored",
			"claim_id", event.ClaimID.String(),
			"status", string(event.Status),
			"participation", string(event.Participation),
		)
		return nil
	}
	return err
}

var errSkip = errors.New("nothing to do")

func (h *ClaimReadyHandler) claimer(ctx context.Context, event models.ClaimReadyEvent) error {
	key, err := h.keyByClaim(ctx, event)
	if err != nil {
		return err
	}
	ctx = requestcontext.WithKeyID(ctx, key.ID)
	portability := event.Kind == models.ClaimPortability

	switch event.Status {
	case models.ClaimStatusConfirmed:
		if portability {
			_, err = h.useCases.Portability.Started(ctx, key.ID)
		} else {
			_, err = h.useCases.Ownership.Waiting(ctx, key.ID)
		}
	case models.ClaimStatusCancelled:
		if portability {
			_, err = h.useCases.Portability.RemoteCanceled(ctx, key.ID)
		} else {
			_, err = h.useCases.Ownership.Canceling(ctx, key.ID, "canceled at registry")
		}
	case models.ClaimStatusCompleted:
		if portability {
			_, err = h.useCases.Portability.Ready(ctx, key.ID)
		} else {
			_, err = h.useCases.Ownership.Ready(ctx, key.ID)
		}
	default:
		return errSkip
	}
	return err
}

func (h *ClaimReadyHandler) donor(ctx context.Context, event models.ClaimReadyEvent) error {
	switch event.Status {
	case models.ClaimStatusOpen:
		key, err := h.readyHolder(ctx, event.KeyValue)
		if err != nil {
			return err
		}
		ctx = requestcontext.WithKeyID(ctx, key.ID)
		if event.Kind == models.ClaimPortability {
			_, err = h.useCases.Portability.RequestReceived(ctx, key.ID, event.ClaimID)
		} else {
			_, err = h.useCases.Claim.Pending(ctx, key.ID, event.ClaimID)
		}
		return err
	case models.ClaimStatusCancelled:
		if event.Kind != models.ClaimOwnership {
			return errSkip
		}
		key, err := h.keyByClaim(ctx, event)
		if err != nil {
			return err
		}
		_, err = h.useCases.Claim.Canceled(requestcontext.WithKeyID(ctx, key.ID), key.ID)
		return err
	default:
		return errSkip
	}
}

func (h *ClaimReadyHandler) keyByClaim(ctx context.Context, event models.ClaimReadyEvent) (*models.Key, error) {
	key, err := h.keys.GetByClaimID(ctx, event.ClaimID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errSkip
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load key by claim")
	}
	return key, nil
}

// readyHolder is the local key a new claim is aimed at.
func (h *ClaimReadyHandler) readyHolder(ctx context.Context, value string) (*models.Key, error) {
	if value == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "claim event without key_value")
	}
	holders, err := h.keys.GetByValueNonCanceled(ctx, value)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load keys by value")
	}
	for _, k := range holders {
		if k.State.IsReady() {
			return k, nil
		}
	}
	return nil, errSkip
}
