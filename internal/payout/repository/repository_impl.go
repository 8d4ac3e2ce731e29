package repository

import (
	"context"
	"time"

	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const payoutColumns = `id, creator_id, amount, earnings_count, period_start, period_end,
	 status, stripe_transfer_id, failure_reason, paid_at, created_at, updated_at`

type repo struct{}

func Provide() payoutdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payout *payoutdomain.Payout) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payouts (
			id, creator_id, amount, earnings_count, period_start, period_end,
			status, stripe_transfer_id, failure_reason, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.ID,
		payout.CreatorID,
		payout.Amount,
		payout.EarningsCount,
		payout.PeriodStart,
		payout.PeriodEnd,
		payout.Status,
		payout.StripeTransferID,
		payout.FailureReason,
		payout.PaidAt,
		payout.CreatedAt,
		payout.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*payoutdomain.Payout, error) {
	return r.findOne(ctx, db, `SELECT `+payoutColumns+` FROM payouts WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*payoutdomain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, db, query, id)
}

func (r *repo) FindOverlapping(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, start, end time.Time) (*payoutdomain.Payout, error) {
	return r.findOne(ctx, db,
		`SELECT `+payoutColumns+` FROM payouts
		 WHERE creator_id = ? AND period_start < ? AND period_end > ?
		 LIMIT 1`,
		creatorID,
		end,
		start,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*payoutdomain.Payout, error) {
	var payout payoutdomain.Payout
	err := db.WithContext(ctx).Raw(query, args...).Scan(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, nil
	}
	return &payout, nil
}

func (r *repo) ListByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]payoutdomain.Payout, error) {
	if limit <= 0 {
		limit = 50
	}

	var payouts []payoutdomain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+` FROM payouts
		 WHERE creator_id = ? ORDER BY period_end DESC LIMIT ?`,
		creatorID,
		limit,
	).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status payoutdomain.PayoutStatus, limit int) ([]payoutdomain.Payout, error) {
	if limit <= 0 {
		limit = 50
	}

	var payouts []payoutdomain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+` FROM payouts
		 WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		status,
		limit,
	).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, payout *payoutdomain.Payout) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payouts
		 SET status = ?, stripe_transfer_id = ?, failure_reason = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		payout.Status,
		payout.StripeTransferID,
		payout.FailureReason,
		payout.PaidAt,
		payout.UpdatedAt,
		payout.ID,
	).Error
}
