// Package stripe adapts the payment gateway port to the Stripe API.
package stripe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fanstack/fanstack/internal/gateway/domain"
	"github.com/fanstack/fanstack/internal/observability/metrics"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const defaultCurrency = "usd"

type Config struct {
	SecretKey string
	ProductID string
	Timeout   time.Duration
}

type Adapter struct {
	api       *client.API
	productID string
	timeout   time.Duration
	metrics   *metrics.Metrics
}

func New(cfg Config, m *metrics.Metrics) *Adapter {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Adapter{
		api:       api,
		productID: strings.TrimSpace(cfg.ProductID),
		timeout:   timeout,
		metrics:   m,
	}
}

func (a *Adapter) EnsureCustomer(ctx context.Context, in domain.EnsureCustomerInput) (*domain.Customer, error) {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	if existing := strings.TrimSpace(in.ExistingCustomerID); existing != "" {
		if _, err := a.api.Customers.Get(existing, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}}); err == nil {
			return &domain.Customer{ProviderCustomerID: existing}, nil
		}
		// provider record is gone, recreate below
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(in.Email),
		Name:   stripe.String(in.DisplayName),
		Metadata: map[string]string{
			"account_id": in.AccountID,
		},
	}

	cust, err := a.api.Customers.New(params)
	if err != nil {
		return nil, a.fail("ensure_customer", err)
	}

	a.ok("ensure_customer")
	return &domain.Customer{ProviderCustomerID: cust.ID}, nil
}

func (a *Adapter) AttachPaymentMethod(ctx context.Context, in domain.AttachPaymentMethodInput) error {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	_, err := a.api.PaymentMethods.Attach(in.PaymentMethodToken, &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(in.ProviderCustomerID),
	})
	if err != nil {
		return a.fail("attach_payment_method", err)
	}

	_, err = a.api.Customers.Update(in.ProviderCustomerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(in.PaymentMethodToken),
		},
	})
	if err != nil {
		return a.fail("attach_payment_method", err)
	}

	a.ok("attach_payment_method")
	return nil
}

func (a *Adapter) CreateSubscription(ctx context.Context, in domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(in.ProviderCustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{
				PriceData: &stripe.SubscriptionItemPriceDataParams{
					Currency:   stripe.String(normalizeCurrency(in.Currency)),
					Product:    stripe.String(a.productID),
					UnitAmount: stripe.Int64(in.PriceCents),
					Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
			},
		},
		Metadata: in.Metadata,
	}
	params.SetIdempotencyKey(uuid.NewString())

	sub, err := a.api.Subscriptions.New(params)
	if err != nil {
		return nil, a.fail("create_subscription", err)
	}

	a.ok("create_subscription")
	return mapSubscription(sub), nil
}

func (a *Adapter) ModifySubscription(ctx context.Context, in domain.ModifySubscriptionInput) (*domain.Subscription, error) {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	switch {
	case in.Resume:
		params.CancelAtPeriodEnd = stripe.Bool(false)
	case in.CancelAtPeriodEnd:
		params.CancelAtPeriodEnd = stripe.Bool(true)
	}

	sub, err := a.api.Subscriptions.Update(in.ProviderSubscriptionID, params)
	if err != nil {
		return nil, a.fail("modify_subscription", err)
	}

	a.ok("modify_subscription")
	return mapSubscription(sub), nil
}

func (a *Adapter) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	_, err := a.api.Subscriptions.Cancel(providerSubscriptionID, &stripe.SubscriptionCancelParams{
		Params:  stripe.Params{Context: ctx},
		Prorate: stripe.Bool(false),
	})
	if err != nil {
		return a.fail("cancel_subscription", err)
	}

	a.ok("cancel_subscription")
	return nil
}

func (a *Adapter) CreateCharge(ctx context.Context, in domain.CreateChargeInput) (*domain.Charge, error) {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Customer:    stripe.String(in.ProviderCustomerID),
		Amount:      stripe.Int64(in.AmountCents),
		Currency:    stripe.String(normalizeCurrency(in.Currency)),
		Description: stripe.String(in.Description),
		Confirm:     stripe.Bool(true),
		OffSession:  stripe.Bool(true),
		Metadata:    in.Metadata,
	}
	params.SetIdempotencyKey(idempotencyKey(in.IdempotencyKey))

	intent, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, a.fail("create_charge", err)
	}

	a.ok("create_charge")
	return &domain.Charge{
		ProviderChargeID: intent.ID,
		Status:           mapIntentStatus(intent.Status),
	}, nil
}

func (a *Adapter) CreateTransfer(ctx context.Context, in domain.CreateTransferInput) (*domain.Transfer, error) {
	ctx, cancel := a.opCtx(ctx)
	defer cancel()

	params := &stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(in.AmountCents),
		Currency:    stripe.String(normalizeCurrency(in.Currency)),
		Destination: stripe.String(in.DestinationAccountID),
		Metadata:    in.Metadata,
	}
	params.SetIdempotencyKey(idempotencyKey(in.IdempotencyKey))

	transfer, err := a.api.Transfers.New(params)
	if err != nil {
		return nil, a.fail("create_transfer", err)
	}

	a.ok("create_transfer")
	return &domain.Transfer{
		ProviderTransferID: transfer.ID,
		Status:             domain.StatusSucceeded,
	}, nil
}

func (a *Adapter) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Adapter) ok(op string) {
	a.metrics.RecordGatewayOperation(op, "ok")
}

func (a *Adapter) fail(op string, err error) error {
	a.metrics.RecordGatewayOperation(op, "error")

	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return &domain.Error{Op: op, Code: string(sErr.Code), Message: sErr.Msg, Err: err}
	}
	return &domain.Error{Op: op, Message: err.Error(), Err: err}
}

func mapSubscription(sub *stripe.Subscription) *domain.Subscription {
	out := &domain.Subscription{
		ProviderSubscriptionID: sub.ID,
		Status:                 mapSubscriptionStatus(sub.Status),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return out
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) domain.Status {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.StatusSucceeded
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusPastDue:
		return domain.StatusPending
	default:
		return domain.StatusFailed
	}
}

func mapIntentStatus(status stripe.PaymentIntentStatus) domain.Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return domain.StatusFailed
	default:
		return domain.StatusPending
	}
}

func normalizeCurrency(currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return defaultCurrency
	}
	return currency
}

func idempotencyKey(key string) string {
	if strings.TrimSpace(key) != "" {
		return key
	}
	return uuid.NewString()
}

var _ domain.Gateway = (*Adapter)(nil)
