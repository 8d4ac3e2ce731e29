package repository

import (
	"context"

	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const tipColumns = `id, subscriber_id, creator_id, amount, platform_fee, creator_amount,
	 message, status, stripe_payment_intent_id, created_at, updated_at`

type repo struct{}

func Provide() tipdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tip *tipdomain.Tip) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tips (
			id, subscriber_id, creator_id, amount, platform_fee, creator_amount,
			message, status, stripe_payment_intent_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tip.ID,
		tip.SubscriberID,
		tip.CreatorID,
		tip.Amount,
		tip.PlatformFee,
		tip.CreatorAmount,
		tip.Message,
		tip.Status,
		tip.StripePaymentIntentID,
		tip.CreatedAt,
		tip.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tipdomain.Tip, error) {
	return r.findOne(ctx, db, `SELECT `+tipColumns+` FROM tips WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tipdomain.Tip, error) {
	query := `SELECT ` + tipColumns + ` FROM tips WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, db, query, id)
}

func (r *repo) FindByProviderRef(ctx context.Context, db *gorm.DB, providerRef string) (*tipdomain.Tip, error) {
	return r.findOne(ctx, db, `SELECT `+tipColumns+` FROM tips WHERE stripe_payment_intent_id = ?`, providerRef)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*tipdomain.Tip, error) {
	var tip tipdomain.Tip
	err := db.WithContext(ctx).Raw(query, args...).Scan(&tip).Error
	if err != nil {
		return nil, err
	}
	if tip.ID == 0 {
		return nil, nil
	}
	return &tip, nil
}

func (r *repo) ListByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]tipdomain.Tip, error) {
	return r.list(ctx, db, `creator_id`, creatorID, limit)
}

func (r *repo) ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, limit int) ([]tipdomain.Tip, error) {
	return r.list(ctx, db, `subscriber_id`, subscriberID, limit)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, field string, id snowflake.ID, limit int) ([]tipdomain.Tip, error) {
	if limit <= 0 {
		limit = 50
	}

	var tips []tipdomain.Tip
	err := db.WithContext(ctx).Raw(
		`SELECT `+tipColumns+` FROM tips WHERE `+field+` = ? ORDER BY created_at DESC LIMIT ?`,
		id,
		limit,
	).Scan(&tips).Error
	if err != nil {
		return nil, err
	}
	return tips, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, tip *tipdomain.Tip) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tips SET status = ?, updated_at = ? WHERE id = ?`,
		tip.Status,
		tip.UpdatedAt,
		tip.ID,
	).Error
}
