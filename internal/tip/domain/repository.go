package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tip *Tip) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tip, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tip, error)
	FindByProviderRef(ctx context.Context, db *gorm.DB, providerRef string) (*Tip, error)
	ListByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]Tip, error)
	ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID, limit int) ([]Tip, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, tip *Tip) error
}
