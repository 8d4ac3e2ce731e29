package repository

import (
	"context"
	"time"

	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	"github.com/fanstack/fanstack/pkg/db/option"
	"github.com/fanstack/fanstack/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const creatorColumns = `id, user_id, display_name, category, description, subscription_price,
	 subscriber_count, total_posts, total_earnings, social_links, accepts_tips, allows_messages,
	 is_active, stripe_account_id, created_at, updated_at`

type repo struct{}

func Provide() creatordomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, creator *creatordomain.Creator) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO creators (
			id, user_id, display_name, category, description, subscription_price,
			subscriber_count, total_posts, total_earnings, social_links, accepts_tips,
			allows_messages, is_active, stripe_account_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		creator.ID,
		creator.UserID,
		creator.DisplayName,
		creator.Category,
		creator.Description,
		creator.SubscriptionPrice,
		creator.SubscriberCount,
		creator.TotalPosts,
		creator.TotalEarnings,
		creator.SocialLinks,
		creator.AcceptsTips,
		creator.AllowsMessages,
		creator.IsActive,
		creator.StripeAccountID,
		creator.CreatedAt,
		creator.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*creatordomain.Creator, error) {
	return r.findOne(ctx, db, `SELECT `+creatorColumns+` FROM creators WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*creatordomain.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, db, query, id)
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*creatordomain.Creator, error) {
	return r.findOne(ctx, db, `SELECT `+creatorColumns+` FROM creators WHERE user_id = ?`, userID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*creatordomain.Creator, error) {
	var creator creatordomain.Creator
	err := db.WithContext(ctx).Raw(query, args...).Scan(&creator).Error
	if err != nil {
		return nil, err
	}
	if creator.ID == 0 {
		return nil, nil
	}
	return &creator, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, category string, activeOnly bool, page pagination.Pagination) ([]*creatordomain.Creator, error) {
	var creators []*creatordomain.Creator
	stmt := db.WithContext(ctx).Model(&creatordomain.Creator{})
	if category != "" {
		stmt = stmt.Where("category = ?", category)
	}
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&creators).Error
	if err != nil {
		return nil, err
	}
	return creators, nil
}

func (r *repo) UpdateProfile(ctx context.Context, db *gorm.DB, creator *creatordomain.Creator) error {
	return db.WithContext(ctx).Exec(
		`UPDATE creators
		 SET display_name = ?, category = ?, description = ?, subscription_price = ?,
		     social_links = ?, accepts_tips = ?, allows_messages = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		creator.DisplayName,
		creator.Category,
		creator.Description,
		creator.SubscriptionPrice,
		creator.SocialLinks,
		creator.AcceptsTips,
		creator.AllowsMessages,
		creator.IsActive,
		creator.UpdatedAt,
		creator.ID,
	).Error
}

func (r *repo) AdjustSubscriberCount(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE creators
		 SET subscriber_count = CASE
		     WHEN subscriber_count + ? < 0 THEN 0
		     ELSE subscriber_count + ?
		 END,
		 updated_at = ?
		 WHERE id = ?`,
		delta,
		delta,
		at,
		id,
	).Error
}

func (r *repo) AddTotalEarnings(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE creators SET total_earnings = total_earnings + ?, updated_at = ? WHERE id = ?`,
		amount,
		at,
		id,
	).Error
}

func (r *repo) AdjustTotalPosts(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE creators
		 SET total_posts = CASE
		     WHEN total_posts + ? < 0 THEN 0
		     ELSE total_posts + ?
		 END,
		 updated_at = ?
		 WHERE id = ?`,
		delta,
		delta,
		at,
		id,
	).Error
}
