package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payout *Payout) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	// FindOverlapping returns any payout for the creator whose period
	// intersects [start, end).
	FindOverlapping(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, start, end time.Time) (*Payout, error)
	ListByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]Payout, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status PayoutStatus, limit int) ([]Payout, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, payout *Payout) error
}
