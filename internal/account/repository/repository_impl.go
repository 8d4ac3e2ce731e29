package repository

import (
	"context"
	"strings"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() accountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *accountdomain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (
			id, email, user_name, display_name, account_type, stripe_customer_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.UserName,
		user.DisplayName,
		user.AccountType,
		user.StripeCustomerID,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*accountdomain.User, error) {
	var user accountdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, user_name, display_name, account_type, stripe_customer_id, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*accountdomain.User, error) {
	var user accountdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, user_name, display_name, account_type, stripe_customer_id, created_at, updated_at
		 FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateCustomerRef(ctx context.Context, db *gorm.DB, id snowflake.ID, customerRef string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stripe_customer_id IS NULL`,
		customerRef,
		id,
	).Error
}
