package service

import (
	"context"
	"strings"
	"time"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/fanstack/fanstack/internal/clock"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	gatewaydomain "github.com/fanstack/fanstack/internal/gateway/domain"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fallbackBillingPeriod is used when the provider response carries no
// period boundaries.
const fallbackBillingPeriod = 30 * 24 * time.Hour

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	repo        subscriptiondomain.Repository
	creatorRepo creatordomain.Repository

	accountsvc accountdomain.Service
	ledgersvc  ledgerdomain.Service
	gateway    gatewaydomain.Gateway
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        subscriptiondomain.Repository
	CreatorRepo creatordomain.Repository

	Accountsvc accountdomain.Service
	Ledgersvc  ledgerdomain.Service
	Gateway    gatewaydomain.Gateway
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		creatorRepo: p.CreatorRepo,

		accountsvc: p.Accountsvc,
		ledgersvc:  p.Ledgersvc,
		gateway:    p.Gateway,
	}
}

// Create opens a subscription at the creator's current price. All
// gateway calls happen before any local write; a gateway failure leaves
// the database untouched.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Response, error) {
	subscriberID, err := s.callerID(ctx)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	creatorID, err := s.parseID(req.CreatorID, subscriptiondomain.ErrInvalidCreator)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, creatorID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if creator == nil || !creator.IsActive {
		return subscriptiondomain.Response{}, creatordomain.ErrCreatorNotFound
	}
	if creator.UserID == subscriberID {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
	}

	existing, err := s.repo.FindBySubscriberAndCreator(ctx, s.db, subscriberID, creatorID)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if existing != nil {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrDuplicateSubscription
	}

	customerRef, err := s.accountsvc.EnsureCustomerRef(ctx, subscriberID.String())
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	if token := strings.TrimSpace(req.PaymentMethodToken); token != "" {
		if err := s.gateway.AttachPaymentMethod(ctx, gatewaydomain.AttachPaymentMethodInput{
			ProviderCustomerID: customerRef,
			PaymentMethodToken: token,
		}); err != nil {
			return subscriptiondomain.Response{}, err
		}
	}

	gwSub, err := s.gateway.CreateSubscription(ctx, gatewaydomain.CreateSubscriptionInput{
		ProviderCustomerID: customerRef,
		PriceCents:         creator.SubscriptionPrice,
		Currency:           "usd",
		Metadata: map[string]string{
			"subscriber_id": subscriberID.String(),
			"creator_id":    creatorID.String(),
		},
	})
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	now := s.clock.Now()
	status := subscriptiondomain.SubscriptionStatusPending
	if gwSub.Status == gatewaydomain.StatusSucceeded {
		status = subscriptiondomain.SubscriptionStatusActive
	}

	periodStart, periodEnd := gwSub.CurrentPeriodStart, gwSub.CurrentPeriodEnd
	if periodStart.IsZero() {
		periodStart = now
	}
	if periodEnd.IsZero() || !periodEnd.After(periodStart) {
		periodEnd = periodStart.Add(fallbackBillingPeriod)
	}

	providerRef := gwSub.ProviderSubscriptionID
	subscription := subscriptiondomain.Subscription{
		ID:                   s.genID.Generate(),
		SubscriberID:         subscriberID,
		CreatorID:            creatorID,
		Status:               status,
		PriceSnapshot:        creator.SubscriptionPrice,
		StripeSubscriptionID: &providerRef,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return subscriptiondomain.ErrDuplicateSubscription
			}
			return err
		}

		if status == subscriptiondomain.SubscriptionStatusActive {
			if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, creatorID, 1, now); err != nil {
				return err
			}
			if err := s.verifyCounter(ctx, tx, creatorID); err != nil {
				return err
			}
		}

		return s.repo.InsertHistory(ctx, tx, &subscriptiondomain.SubscriptionHistory{
			ID:             s.genID.Generate(),
			SubscriptionID: subscription.ID,
			Action:         subscriptiondomain.HistoryActionCreated,
			Amount:         subscription.PriceSnapshot,
			CreatedAt:      now,
		})
	})
	if err != nil {
		s.log.Error("subscription persist failed after gateway create",
			zap.String("provider_subscription_id", providerRef),
			zap.Error(err),
		)
		return subscriptiondomain.Response{}, err
	}

	return toResponse(&subscription), nil
}

// Cancel flags the provider subscription to stop at period end, then
// marks the local row cancelled. Access continues until the period
// lapses.
func (s *Service) Cancel(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	subscription, err := s.findOwned(ctx, id)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
	}

	if subscription.StripeSubscriptionID != nil {
		if _, err := s.gateway.ModifySubscription(ctx, gatewaydomain.ModifySubscriptionInput{
			ProviderSubscriptionID: *subscription.StripeSubscriptionID,
			CancelAtPeriodEnd:      true,
		}); err != nil {
			return subscriptiondomain.Response{}, err
		}
	}

	var updated *subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, subscription.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if locked.Status != subscriptiondomain.SubscriptionStatusActive {
			return subscriptiondomain.ErrInvalidOperation
		}

		now := s.clock.Now()
		locked.Status = subscriptiondomain.SubscriptionStatusCancelled
		locked.CancelledAt = &now
		locked.UpdatedAt = now
		if err := s.repo.UpdateLifecycle(ctx, tx, locked); err != nil {
			return err
		}

		if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, locked.CreatorID, -1, now); err != nil {
			return err
		}
		if err := s.verifyCounter(ctx, tx, locked.CreatorID); err != nil {
			return err
		}

		if err := s.repo.InsertHistory(ctx, tx, &subscriptiondomain.SubscriptionHistory{
			ID:             s.genID.Generate(),
			SubscriptionID: locked.ID,
			Action:         subscriptiondomain.HistoryActionCancelled,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		updated = locked
		return nil
	})
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	return toResponse(updated), nil
}

// Reactivate undoes a pending cancellation. Only the cancelled state
// can be reactivated; expired subscriptions require a new subscription.
func (s *Service) Reactivate(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	subscription, err := s.findOwned(ctx, id)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	if subscription.Status != subscriptiondomain.SubscriptionStatusCancelled {
		return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
	}

	if subscription.StripeSubscriptionID != nil {
		if _, err := s.gateway.ModifySubscription(ctx, gatewaydomain.ModifySubscriptionInput{
			ProviderSubscriptionID: *subscription.StripeSubscriptionID,
			Resume:                 true,
		}); err != nil {
			return subscriptiondomain.Response{}, err
		}
	}

	var updated *subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, subscription.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if locked.Status != subscriptiondomain.SubscriptionStatusCancelled {
			return subscriptiondomain.ErrInvalidOperation
		}

		now := s.clock.Now()
		locked.Status = subscriptiondomain.SubscriptionStatusActive
		locked.CancelledAt = nil
		locked.UpdatedAt = now
		if err := s.repo.UpdateLifecycle(ctx, tx, locked); err != nil {
			return err
		}

		if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, locked.CreatorID, 1, now); err != nil {
			return err
		}
		if err := s.verifyCounter(ctx, tx, locked.CreatorID); err != nil {
			return err
		}

		if err := s.repo.InsertHistory(ctx, tx, &subscriptiondomain.SubscriptionHistory{
			ID:             s.genID.Generate(),
			SubscriptionID: locked.ID,
			Action:         subscriptiondomain.HistoryActionReactivated,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		updated = locked
		return nil
	})
	if err != nil {
		return subscriptiondomain.Response{}, err
	}

	return toResponse(updated), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	subscription, err := s.findOwned(ctx, id)
	if err != nil {
		return subscriptiondomain.Response{}, err
	}
	return toResponse(subscription), nil
}

func (s *Service) ListBySubscriber(ctx context.Context) ([]subscriptiondomain.Response, error) {
	subscriberID, err := s.callerID(ctx)
	if err != nil {
		return nil, err
	}

	subscriptions, err := s.repo.ListBySubscriber(ctx, s.db, subscriberID)
	if err != nil {
		return nil, err
	}

	out := make([]subscriptiondomain.Response, 0, len(subscriptions))
	for i := range subscriptions {
		out = append(out, toResponse(&subscriptions[i]))
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, id string) ([]subscriptiondomain.HistoryEntry, error) {
	subscription, err := s.findOwned(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListHistory(ctx, s.db, subscription.ID)
	if err != nil {
		return nil, err
	}

	out := make([]subscriptiondomain.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, subscriptiondomain.HistoryEntry{
			ID:              entry.ID.String(),
			Action:          entry.Action,
			Amount:          entry.Amount,
			StripeInvoiceID: entry.StripeInvoiceID,
			Notes:           entry.Notes,
			CreatedAt:       entry.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) HasActiveSubscription(ctx context.Context, subscriberID, creatorID string) (bool, error) {
	subID, err := s.parseID(subscriberID, subscriptiondomain.ErrInvalidSubscriber)
	if err != nil {
		return false, err
	}
	crID, err := s.parseID(creatorID, subscriptiondomain.ErrInvalidCreator)
	if err != nil {
		return false, err
	}

	subscription, err := s.repo.FindBySubscriberAndCreator(ctx, s.db, subID, crID)
	if err != nil {
		return false, err
	}
	if subscription == nil {
		return false, nil
	}

	return subscription.IsAccessible(s.clock.Now()), nil
}

// MarkRenewed applies a paid-invoice event: the period advances, the
// earning is recorded, and a pending subscription becomes active.
// Replays of the same invoice are absorbed by the ledger dedupe.
func (s *Service) MarkRenewed(ctx context.Context, event subscriptiondomain.RenewalEvent) error {
	subscription, err := s.repo.FindByProviderRef(ctx, s.db, strings.TrimSpace(event.ProviderSubscriptionID))
	if err != nil {
		return err
	}
	if subscription == nil {
		return subscriptiondomain.ErrSubscriptionNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, subscription.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		switch locked.Status {
		case subscriptiondomain.SubscriptionStatusCancelled, subscriptiondomain.SubscriptionStatusExpired:
			s.log.Warn("renewal event for inactive subscription ignored",
				zap.String("subscription_id", locked.ID.String()),
				zap.String("status", string(locked.Status)),
				zap.String("invoice_id", event.InvoiceID),
			)
			return nil
		}

		now := s.clock.Now()
		wasActive := locked.Status == subscriptiondomain.SubscriptionStatusActive

		locked.Status = subscriptiondomain.SubscriptionStatusActive
		if !event.PeriodStart.IsZero() && event.PeriodEnd.After(event.PeriodStart) {
			locked.CurrentPeriodStart = event.PeriodStart
			locked.CurrentPeriodEnd = event.PeriodEnd
		} else {
			locked.CurrentPeriodStart = locked.CurrentPeriodEnd
			locked.CurrentPeriodEnd = locked.CurrentPeriodEnd.Add(fallbackBillingPeriod)
		}
		locked.UpdatedAt = now
		if err := s.repo.UpdateLifecycle(ctx, tx, locked); err != nil {
			return err
		}

		if !wasActive {
			if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, locked.CreatorID, 1, now); err != nil {
				return err
			}
		}
		if err := s.verifyCounter(ctx, tx, locked.CreatorID); err != nil {
			return err
		}

		amount := event.Amount
		if amount <= 0 {
			amount = locked.PriceSnapshot
		}

		if err := s.repo.InsertHistory(ctx, tx, &subscriptiondomain.SubscriptionHistory{
			ID:              s.genID.Generate(),
			SubscriptionID:  locked.ID,
			Action:          subscriptiondomain.HistoryActionRenewed,
			Amount:          amount,
			StripeInvoiceID: event.InvoiceID,
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		subscriptionID := locked.ID
		_, err = s.ledgersvc.Record(ctx, tx, ledgerdomain.RecordEarningInput{
			CreatorID:      locked.CreatorID,
			Type:           ledgerdomain.EarningTypeSubscription,
			GrossAmount:    amount,
			SubscriptionID: &subscriptionID,
			SourceRef:      event.InvoiceID,
			OccurredAt:     now,
		})
		return err
	})
}

// MarkPaymentFailed records a failed-invoice event. The subscription
// stays in its current state; the provider retries on its own schedule.
func (s *Service) MarkPaymentFailed(ctx context.Context, event subscriptiondomain.PaymentFailureEvent) error {
	subscription, err := s.repo.FindByProviderRef(ctx, s.db, strings.TrimSpace(event.ProviderSubscriptionID))
	if err != nil {
		return err
	}
	if subscription == nil {
		return subscriptiondomain.ErrSubscriptionNotFound
	}

	return s.repo.InsertHistory(ctx, s.db, &subscriptiondomain.SubscriptionHistory{
		ID:              s.genID.Generate(),
		SubscriptionID:  subscription.ID,
		Action:          subscriptiondomain.HistoryActionPaymentFailed,
		StripeInvoiceID: event.InvoiceID,
		CreatedAt:       s.clock.Now(),
	})
}

// ExpireDue is the reconciliation sweep: active subscriptions whose
// period lapsed become expired, one short transaction per row.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.FindDueIDs(ctx, s.db, now, 500)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			locked, err := s.repo.FindByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if locked == nil || locked.Status != subscriptiondomain.SubscriptionStatusActive || locked.CurrentPeriodEnd.After(now) {
				return nil
			}

			locked.Status = subscriptiondomain.SubscriptionStatusExpired
			locked.UpdatedAt = now
			if err := s.repo.UpdateLifecycle(ctx, tx, locked); err != nil {
				return err
			}

			if err := s.creatorRepo.AdjustSubscriberCount(ctx, tx, locked.CreatorID, -1, now); err != nil {
				return err
			}
			if err := s.verifyCounter(ctx, tx, locked.CreatorID); err != nil {
				return err
			}

			if err := s.repo.InsertHistory(ctx, tx, &subscriptiondomain.SubscriptionHistory{
				ID:             s.genID.Generate(),
				SubscriptionID: locked.ID,
				Action:         subscriptiondomain.HistoryActionExpired,
				CreatedAt:      now,
			}); err != nil {
				return err
			}

			expired++
			return nil
		})
		if err != nil {
			return expired, err
		}
	}

	return expired, nil
}

// verifyCounter cross-checks the denormalized subscriber count against
// the source of truth before commit.
func (s *Service) verifyCounter(ctx context.Context, tx *gorm.DB, creatorID snowflake.ID) error {
	count, err := s.repo.CountActiveByCreator(ctx, tx, creatorID)
	if err != nil {
		return err
	}

	creator, err := s.creatorRepo.FindByID(ctx, tx, creatorID)
	if err != nil {
		return err
	}
	if creator == nil {
		return creatordomain.ErrCreatorNotFound
	}

	if creator.SubscriberCount != count {
		s.log.Error("subscriber count drift detected",
			zap.String("creator_id", creatorID.String()),
			zap.Int64("stored", creator.SubscriberCount),
			zap.Int64("actual", count),
		)
		return subscriptiondomain.ErrConsistencyViolation
	}

	return nil
}

func (s *Service) findOwned(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return nil, err
	}

	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, err
	}
	// a foreign subscription is indistinguishable from a missing one
	if subscription == nil || subscription.SubscriberID != callerID {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	return subscription, nil
}

func (s *Service) callerID(ctx context.Context) (snowflake.ID, error) {
	raw := usercontext.UserIDFromContext(ctx)
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, subscriptiondomain.ErrInvalidSubscriber
	}
	return id, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func toResponse(subscription *subscriptiondomain.Subscription) subscriptiondomain.Response {
	return subscriptiondomain.Response{
		ID:                 subscription.ID.String(),
		SubscriberID:       subscription.SubscriberID.String(),
		CreatorID:          subscription.CreatorID.String(),
		Status:             subscription.Status,
		PriceSnapshot:      subscription.PriceSnapshot,
		CurrentPeriodStart: subscription.CurrentPeriodStart,
		CurrentPeriodEnd:   subscription.CurrentPeriodEnd,
		CancelledAt:        subscription.CancelledAt,
		CreatedAt:          subscription.CreatedAt,
	}
}
