// Package requestcontext provides transport-independent accessors for
// message-scoped values.
//
// The messaging dispatcher sets these when it picks up a record; services and
// the logger read them. Tests inject a fixed clock with WithTime so bucket
// refills and timeouts are deterministic.
//
//	ctx = requestcontext.WithRequestID(ctx, "evt-123")
//	ctx = requestcontext.WithTime(ctx, fixed)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"

	id "pixkeys/pkg/domain"
)

type (
	userIDKey      struct{}
	keyIDKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// UserID retrieves the acting user ID. Returns the nil UUID if not set.
func UserID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(userIDKey{}).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// KeyID retrieves the pix key the current message is about.
func KeyID(ctx context.Context) id.KeyID {
	if v, ok := ctx.Value(keyIDKey{}).(id.KeyID); ok {
		return v
	}
	return id.KeyID{}
}

func WithKeyID(ctx context.Context, keyID id.KeyID) context.Context {
	return context.WithValue(ctx, keyIDKey{}, keyID)
}

// RequestID retrieves the correlation ID (message key or job run ID).
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the message-scoped time, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
