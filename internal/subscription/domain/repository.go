package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	InsertHistory(ctx context.Context, db *gorm.DB, entry *SubscriptionHistory) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindBySubscriberAndCreator(ctx context.Context, db *gorm.DB, subscriberID, creatorID snowflake.ID) (*Subscription, error)
	FindByProviderRef(ctx context.Context, db *gorm.DB, providerRef string) (*Subscription, error)
	ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) ([]Subscription, error)
	ListHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]SubscriptionHistory, error)
	CountActiveByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID) (int64, error)
	FindDueIDs(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)
	UpdateLifecycle(ctx context.Context, db *gorm.DB, subscription *Subscription) error
}
