package domain

import (
	"context"
	"errors"
	"time"
)

type CreateSubscriptionRequest struct {
	CreatorID          string `json:"creator_id"`
	PaymentMethodToken string `json:"payment_method_token"`
}

type Response struct {
	ID                 string             `json:"id"`
	SubscriberID       string             `json:"subscriber_id"`
	CreatorID          string             `json:"creator_id"`
	Status             SubscriptionStatus `json:"status"`
	PriceSnapshot      int64              `json:"price_snapshot"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

type HistoryEntry struct {
	ID              string        `json:"id"`
	Action          HistoryAction `json:"action"`
	Amount          int64         `json:"amount"`
	StripeInvoiceID string        `json:"stripe_invoice_id,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RenewalEvent is the provider's invoice-paid notification.
type RenewalEvent struct {
	ProviderSubscriptionID string
	InvoiceID              string
	Amount                 int64
	PeriodStart            time.Time
	PeriodEnd              time.Time
}

// PaymentFailureEvent is the provider's invoice-failed notification.
type PaymentFailureEvent struct {
	ProviderSubscriptionID string
	InvoiceID              string
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Response, error)
	Cancel(ctx context.Context, id string) (Response, error)
	Reactivate(ctx context.Context, id string) (Response, error)
	GetByID(ctx context.Context, id string) (Response, error)
	ListBySubscriber(ctx context.Context) ([]Response, error)
	History(ctx context.Context, id string) ([]HistoryEntry, error)
	// HasActiveSubscription reports whether the subscriber currently has
	// access to the creator's gated content.
	HasActiveSubscription(ctx context.Context, subscriberID, creatorID string) (bool, error)
	MarkRenewed(ctx context.Context, event RenewalEvent) error
	MarkPaymentFailed(ctx context.Context, event PaymentFailureEvent) error
	// ExpireDue transitions active subscriptions whose period has lapsed
	// and returns how many rows changed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

var (
	ErrInvalidSubscriber     = errors.New("invalid_subscriber")
	ErrInvalidCreator        = errors.New("invalid_creator")
	ErrInvalidSubscription   = errors.New("invalid_subscription")
	ErrDuplicateSubscription = errors.New("duplicate_subscription")
	ErrInvalidOperation      = errors.New("invalid_operation")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrConsistencyViolation  = errors.New("consistency_violation")
)
