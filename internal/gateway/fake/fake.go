// Package fake provides an in-memory gateway for development and tests.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/gateway/domain"
)

const billingPeriod = 30 * 24 * time.Hour

// Gateway records calls and can be scripted to fail specific operations.
type Gateway struct {
	mu sync.Mutex

	clock    clock.Clock
	seq      int64
	failures map[string]error

	Customers     []domain.EnsureCustomerInput
	Subscriptions []domain.CreateSubscriptionInput
	Charges       []domain.CreateChargeInput
	Transfers     []domain.CreateTransferInput
	Cancellations []string
}

func New(clk clock.Clock) *Gateway {
	return &Gateway{
		clock:    clk,
		failures: map[string]error{},
	}
}

// FailNext makes the next call to op return err.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

func (g *Gateway) EnsureCustomer(ctx context.Context, in domain.EnsureCustomerInput) (*domain.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure("ensure_customer"); err != nil {
		return nil, err
	}

	g.Customers = append(g.Customers, in)
	if in.ExistingCustomerID != "" {
		return &domain.Customer{ProviderCustomerID: in.ExistingCustomerID}, nil
	}
	return &domain.Customer{ProviderCustomerID: g.nextID("cus")}, nil
}

func (g *Gateway) AttachPaymentMethod(ctx context.Context, in domain.AttachPaymentMethodInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.takeFailure("attach_payment_method")
}

func (g *Gateway) CreateSubscription(ctx context.Context, in domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure("create_subscription"); err != nil {
		return nil, err
	}

	g.Subscriptions = append(g.Subscriptions, in)
	now := g.clock.Now()
	return &domain.Subscription{
		ProviderSubscriptionID: g.nextID("sub"),
		Status:                 domain.StatusSucceeded,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.Add(billingPeriod),
	}, nil
}

func (g *Gateway) ModifySubscription(ctx context.Context, in domain.ModifySubscriptionInput) (*domain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure("modify_subscription"); err != nil {
		return nil, err
	}

	now := g.clock.Now()
	return &domain.Subscription{
		ProviderSubscriptionID: in.ProviderSubscriptionID,
		Status:                 domain.StatusSucceeded,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.Add(billingPeriod),
	}, nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure("cancel_subscription"); err != nil {
		return err
	}

	g.Cancellations = append(g.Cancellations, providerSubscriptionID)
	return nil
}

func (g *Gateway) CreateCharge(ctx context.Context, in domain.CreateChargeInput) (*domain.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure("create_charge"); err != nil {
		return nil, err
	}

	g.Charges = append(g.Charges, in)
	return &domain.Charge{
		ProviderChargeID: g.nextID("pi"),
		Status:           domain.StatusSucceeded,
	}, nil
}

func (g *Gateway) CreateTransfer(ctx context.Context, in domain.CreateTransferInput) (*domain.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFailure("create_transfer"); err != nil {
		return nil, err
	}

	g.Transfers = append(g.Transfers, in)
	return &domain.Transfer{
		ProviderTransferID: g.nextID("tr"),
		Status:             domain.StatusSucceeded,
	}, nil
}

func (g *Gateway) takeFailure(op string) error {
	if err, ok := g.failures[op]; ok {
		delete(g.failures, op)
		return err
	}
	return nil
}

func (g *Gateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, g.seq)
}

var _ domain.Gateway = (*Gateway)(nil)
