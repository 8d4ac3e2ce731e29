package repository

import (
	"context"
	"time"

	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const earningColumns = `id, creator_id, type, gross_amount, platform_fee, net_amount,
	 subscription_id, tip_id, source_ref, is_paid_out, payout_date, created_at`

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) InsertEarning(ctx context.Context, db *gorm.DB, earning *ledgerdomain.Earning) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO earnings (
			id, creator_id, type, gross_amount, platform_fee, net_amount,
			subscription_id, tip_id, source_ref, is_paid_out, payout_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		earning.ID,
		earning.CreatorID,
		earning.Type,
		earning.GrossAmount,
		earning.PlatformFee,
		earning.NetAmount,
		earning.SubscriptionID,
		earning.TipID,
		earning.SourceRef,
		earning.IsPaidOut,
		earning.PayoutDate,
		earning.CreatedAt,
	).Error
}

func (r *repo) FindEarningBySourceRef(ctx context.Context, db *gorm.DB, sourceRef string) (*ledgerdomain.Earning, error) {
	var earning ledgerdomain.Earning
	err := db.WithContext(ctx).Raw(
		`SELECT `+earningColumns+` FROM earnings WHERE source_ref = ?`,
		sourceRef,
	).Scan(&earning).Error
	if err != nil {
		return nil, err
	}
	if earning.ID == 0 {
		return nil, nil
	}
	return &earning, nil
}

func (r *repo) ListEarningsByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]ledgerdomain.Earning, error) {
	if limit <= 0 {
		limit = 50
	}

	var earnings []ledgerdomain.Earning
	err := db.WithContext(ctx).Raw(
		`SELECT `+earningColumns+` FROM earnings
		 WHERE creator_id = ? ORDER BY created_at DESC LIMIT ?`,
		creatorID,
		limit,
	).Scan(&earnings).Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repo) FindUnpaidCreatorIDs(ctx context.Context, db *gorm.DB, start, end time.Time) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT creator_id FROM earnings
		 WHERE is_paid_out = ? AND created_at >= ? AND created_at < ?
		 ORDER BY creator_id ASC`,
		false,
		start,
		end,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) FindUnpaidByCreatorForUpdate(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, start, end time.Time) ([]ledgerdomain.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM earnings
		 WHERE creator_id = ? AND is_paid_out = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}

	var earnings []ledgerdomain.Earning
	err := db.WithContext(ctx).Raw(query, creatorID, false, start, end).Scan(&earnings).Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}

func (r *repo) MarkPaidOut(ctx context.Context, db *gorm.DB, ids []snowflake.ID, payoutDate time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	return db.WithContext(ctx).Exec(
		`UPDATE earnings SET is_paid_out = ?, payout_date = ? WHERE id IN ?`,
		true,
		payoutDate,
		ids,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, transaction *ledgerdomain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, type, amount, status, stripe_ref, subscription_id, tip_id, payout_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transaction.ID,
		transaction.Type,
		transaction.Amount,
		transaction.Status,
		transaction.StripeRef,
		transaction.SubscriptionID,
		transaction.TipID,
		transaction.PayoutID,
		transaction.CreatedAt,
	).Error
}

func (r *repo) SummaryByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID) (*ledgerdomain.Summary, error) {
	var summary ledgerdomain.Summary
	err := db.WithContext(ctx).Raw(
		`SELECT
		     COALESCE(SUM(gross_amount), 0) AS total_gross,
		     COALESCE(SUM(platform_fee), 0) AS total_fees,
		     COALESCE(SUM(net_amount), 0) AS total_net,
		     COALESCE(SUM(CASE WHEN is_paid_out THEN 0 ELSE net_amount END), 0) AS unpaid_net,
		     COALESCE(SUM(CASE WHEN is_paid_out THEN net_amount ELSE 0 END), 0) AS paid_net
		 FROM earnings WHERE creator_id = ?`,
		creatorID,
	).Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
