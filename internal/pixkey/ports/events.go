package ports

import (
	"context"
	"log/slog"

	"pixkeys/internal/pixkey/models"
)

//go:generate mockgen -source=events.go -destination=mocks/events_mock.go -package=mocks

type KeyEventEmitter interface {
	Emit(ctx context.Context, event models.KeyEvent) error
	EmitExpired(ctx context.Context, event models.ExpiredEvent) error
}

type ClaimEventEmitter interface {
	EmitClaimReady(ctx context.Context, event models.ClaimReadyEvent) error
}

type DecodedKeyEventEmitter interface {
	Emit(ctx context.Context, event models.DecodedKeyEvent) error
}

// IntegrityAlerter escalates data-integrity faults for manual intervention.
type IntegrityAlerter interface {
	KeyHolderConflict(ctx context.Context, conflict models.KeyHolderConflict) error
}

// LogTransition writes the structured audit line for a key state change.
// Request-scoped fields are added by the logger's context handler.
func LogTransition(ctx context.Context, logger *slog.Logger, key *models.Key, from models.KeyState, attrs ...any) {
	if logger == nil {
		return
	}
	args := append([]any{
		"key_id", key.ID.String(),
		"from", string(from),
		"to", string(key.State),
		"log_type", "audit",
	}, attrs...)
	logger.InfoContext(ctx, "key_transition", args...)
}
