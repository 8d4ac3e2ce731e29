package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateTipRequest struct {
	CreatorID string `json:"creator_id"`
	Amount    int64  `json:"amount"`
	Message   string `json:"message"`
}

type Response struct {
	ID            string    `json:"id"`
	SubscriberID  string    `json:"subscriber_id"`
	CreatorID     string    `json:"creator_id"`
	Amount        int64     `json:"amount"`
	PlatformFee   int64     `json:"platform_fee"`
	CreatorAmount int64     `json:"creator_amount"`
	Message       string    `json:"message,omitempty"`
	Status        TipStatus `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateTipRequest) (Response, error)
	// Complete settles a pending tip from the provider's payment
	// confirmation. Replays are absorbed.
	Complete(ctx context.Context, providerRef string) error
	Fail(ctx context.Context, providerRef string) error
	Refund(ctx context.Context, providerRef string) error
	GetByID(ctx context.Context, id string) (Response, error)
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]Response, error)
}

// Notifier is told about settled tips after commit. Implemented by the
// messaging service.
type Notifier interface {
	NotifyTip(ctx context.Context, creatorID, subscriberID snowflake.ID, amount int64, message string)
}

var (
	ErrInvalidTip       = errors.New("invalid_tip")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrTipNotFound      = errors.New("tip_not_found")
	ErrTipsNotAccepted  = errors.New("tips_not_accepted")
	ErrInvalidOperation = errors.New("invalid_operation")
)
