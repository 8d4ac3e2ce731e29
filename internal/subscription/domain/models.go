// Package domain contains persistence models for subscriptions and
// their append-only history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription links a subscriber to a creator. PriceSnapshot is the
// creator's price at creation time and never changes afterwards. The
// (subscriber_id, creator_id) pair is unique across all statuses.
type Subscription struct {
	ID                   snowflake.ID       `gorm:"primaryKey"`
	SubscriberID         snowflake.ID       `gorm:"not null;uniqueIndex:idx_subscriber_creator"`
	CreatorID            snowflake.ID       `gorm:"not null;uniqueIndex:idx_subscriber_creator;index"`
	Status               SubscriptionStatus `gorm:"type:text;not null"`
	PriceSnapshot        int64              `gorm:"not null"`
	StripeSubscriptionID *string            `gorm:"type:text;uniqueIndex"`
	CurrentPeriodStart   time.Time          `gorm:"not null"`
	CurrentPeriodEnd     time.Time          `gorm:"not null;index"`
	CancelledAt          *time.Time         `gorm:""`
	CreatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// IsAccessible reports whether the subscription still grants content
// access at the given instant.
func (s Subscription) IsAccessible(at time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.CurrentPeriodEnd.After(at)
}

// HistoryAction enumerates subscription lifecycle events.
type HistoryAction string

const (
	HistoryActionCreated       HistoryAction = "created"
	HistoryActionRenewed       HistoryAction = "renewed"
	HistoryActionCancelled     HistoryAction = "cancelled"
	HistoryActionReactivated   HistoryAction = "reactivated"
	HistoryActionExpired       HistoryAction = "expired"
	HistoryActionPaymentFailed HistoryAction = "payment_failed"
)

// SubscriptionHistory is the append-only audit trail.
type SubscriptionHistory struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	SubscriptionID  snowflake.ID  `gorm:"not null;index"`
	Action          HistoryAction `gorm:"type:text;not null"`
	Amount          int64         `gorm:"not null;default:0"`
	StripeInvoiceID string        `gorm:"type:text"`
	Notes           string        `gorm:"type:text"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionHistory) TableName() string { return "subscription_history" }
