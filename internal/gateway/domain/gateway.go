// Package domain defines the payment gateway port. Adapters translate
// these operations to a concrete provider.
package domain

import (
	"context"
	"fmt"
	"time"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Error wraps a provider failure. Services surface it as an upstream
// gateway error without committing any local mutation.
type Error struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Customer struct {
	ProviderCustomerID string
}

type EnsureCustomerInput struct {
	AccountID   string
	Email       string
	DisplayName string
	// ExistingCustomerID skips creation when the provider record is
	// still valid.
	ExistingCustomerID string
}

type AttachPaymentMethodInput struct {
	ProviderCustomerID string
	PaymentMethodToken string
}

type Subscription struct {
	ProviderSubscriptionID string
	Status                 Status
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
}

type CreateSubscriptionInput struct {
	ProviderCustomerID string
	PriceCents         int64
	Currency           string
	Metadata           map[string]string
}

type ModifySubscriptionInput struct {
	ProviderSubscriptionID string
	CancelAtPeriodEnd      bool
	Resume                 bool
}

type Charge struct {
	ProviderChargeID string
	Status           Status
}

type CreateChargeInput struct {
	ProviderCustomerID string
	AmountCents        int64
	Currency           string
	Description        string
	IdempotencyKey     string
	Metadata           map[string]string
}

type Transfer struct {
	ProviderTransferID string
	Status             Status
}

type CreateTransferInput struct {
	DestinationAccountID string
	AmountCents          int64
	Currency             string
	IdempotencyKey       string
	Metadata             map[string]string
}

// Gateway is the provider port used by subscription, tip and payout
// services. Every call must succeed before the caller mutates local
// state.
type Gateway interface {
	EnsureCustomer(ctx context.Context, in EnsureCustomerInput) (*Customer, error)
	AttachPaymentMethod(ctx context.Context, in AttachPaymentMethodInput) error
	CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error)
	ModifySubscription(ctx context.Context, in ModifySubscriptionInput) (*Subscription, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error
	CreateCharge(ctx context.Context, in CreateChargeInput) (*Charge, error)
	CreateTransfer(ctx context.Context, in CreateTransferInput) (*Transfer, error)
}
