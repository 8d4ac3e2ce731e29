package repository

import (
	"context"
	"time"

	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const subscriptionColumns = `id, subscriber_id, creator_id, status, price_snapshot,
	 stripe_subscription_id, current_period_start, current_period_end, cancelled_at,
	 created_at, updated_at`

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, subscriber_id, creator_id, status, price_snapshot, stripe_subscription_id,
			current_period_start, current_period_end, cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.SubscriberID,
		subscription.CreatorID,
		subscription.Status,
		subscription.PriceSnapshot,
		subscription.StripeSubscriptionID,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.CancelledAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *subscriptiondomain.SubscriptionHistory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_history (
			id, subscription_id, action, amount, stripe_invoice_id, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.SubscriptionID,
		entry.Action,
		entry.Amount,
		entry.StripeInvoiceID,
		entry.Notes,
		entry.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, db, query, id)
}

func (r *repo) FindBySubscriberAndCreator(ctx context.Context, db *gorm.DB, subscriberID, creatorID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE subscriber_id = ? AND creator_id = ?`,
		subscriberID,
		creatorID,
	)
}

func (r *repo) FindByProviderRef(ctx context.Context, db *gorm.DB, providerRef string) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = ?`,
		providerRef,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(query, args...).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE subscriber_id = ? ORDER BY created_at DESC`,
		subscriberID,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]subscriptiondomain.SubscriptionHistory, error) {
	var entries []subscriptiondomain.SubscriptionHistory
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, action, amount, stripe_invoice_id, notes, created_at
		 FROM subscription_history
		 WHERE subscription_id = ? ORDER BY created_at ASC, id ASC`,
		subscriptionID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) CountActiveByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscriptions WHERE creator_id = ? AND status = ?`,
		creatorID,
		subscriptiondomain.SubscriptionStatusActive,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) FindDueIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 100
	}

	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM subscriptions
		 WHERE status = ? AND current_period_end <= ?
		 ORDER BY current_period_end ASC
		 LIMIT ?`,
		subscriptiondomain.SubscriptionStatusActive,
		now,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, current_period_start = ?, current_period_end = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ?`,
		subscription.Status,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.CancelledAt,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}
