package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fanstack/fanstack/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, creator *Creator) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Creator, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Creator, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Creator, error)
	List(ctx context.Context, db *gorm.DB, category string, activeOnly bool, page pagination.Pagination) ([]*Creator, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, creator *Creator) error

	// AdjustSubscriberCount applies a guarded delta: the stored count
	// never drops below zero.
	AdjustSubscriberCount(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) error
	AddTotalEarnings(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, at time.Time) error
	AdjustTotalPosts(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) error
}
