package ports

import (
	"context"
	"time"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
)

//go:generate mockgen -source=external.go -destination=mocks/external_mock.go -package=mocks

// User is the directory view of a platform user.
type User struct {
	ID         id.UserID         `json:"id"`
	Active     bool              `json:"active"`
	PersonType models.PersonType `json:"person_type"`
	Document   string            `json:"document"`
	Name       string            `json:"name"`
	TradeName  string            `json:"trade_name,omitempty"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
}

// Onboarding is the account opened for a user when onboarding completed.
type Onboarding struct {
	UserID        id.UserID `json:"user_id"`
	Document      string    `json:"document"`
	Branch        string    `json:"branch"`
	AccountNumber string    `json:"account_number"`
	AccountType   string    `json:"account_type"`
	CompletedAt   time.Time `json:"completed_at"`
}

// UserDirectory resolves users. Unknown users yield sentinel.ErrNotFound.
type UserDirectory interface {
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	GetOnboarding(ctx context.Context, userID id.UserID) (*Onboarding, error)
}

// NotificationService delivers verification codes.
type NotificationService interface {
	SendEmailCode(ctx context.Context, to, code string) error
	SendSMSCode(ctx context.Context, to, code string) error
}
