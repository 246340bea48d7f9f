// Package notification hands verification codes to the delivery service.
//
// Codes are published to a topic per channel; the delivery service owns
// templates, providers and retries.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/transport/messaging"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

type codeMessage struct {
	Channel   string    `json:"channel"`
	To        string    `json:"to" validate:"required"`
	Code      string    `json:"code" validate:"required,numeric"`
	RequestID string    `json:"request_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

type emailTarget struct {
	To string `validate:"required,email"`
}

type smsTarget struct {
	To string `validate:"required,e164"`
}

// Publisher sends codes through the broker.
type Publisher struct {
	publisher messaging.Publisher
	validate  *validator.Validate
}

func NewPublisher(publisher messaging.Publisher) *Publisher {
	return &Publisher{publisher: publisher, validate: models.Validator()}
}

func (p *Publisher) SendEmailCode(ctx context.Context, to, code string) error {
	if err := p.validate.Struct(emailTarget{To: to}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid email recipient")
	}
	return p.send(ctx, messaging.TopicNotifyEmail, "email", to, code)
}

func (p *Publisher) SendSMSCode(ctx context.Context, to, code string) error {
	if err := p.validate.Struct(smsTarget{To: to}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid phone recipient")
	}
	return p.send(ctx, messaging.TopicNotifySMS, "sms", to, code)
}

func (p *Publisher) send(ctx context.Context, topic, channel, to, code string) error {
	msg := codeMessage{
		Channel:   channel,
		To:        to,
		Code:      code,
		RequestID: requestcontext.RequestID(ctx),
		IssuedAt:  requestcontext.Now(ctx),
	}
	if err := p.validate.Struct(msg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid notification")
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.publisher.Publish(ctx, topic, []byte(to), value, nil)
}

// Logger writes codes to the log instead of delivering them. It backs local
// runs without a broker.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) SendEmailCode(ctx context.Context, to, code string) error {
	l.logger.InfoContext(ctx, "verification code", "channel", "email", "to", to, "code", code)
	return nil
}

func (l *Logger) SendSMSCode(ctx context.Context, to, code string) error {
	l.logger.InfoContext(ctx, "verification code", "channel", "sms", "to", to, "code", code)
	return nil
}
