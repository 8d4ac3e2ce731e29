// Package domain contains persistence models for one-off tips.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TipStatus string

const (
	TipStatusPending   TipStatus = "pending"
	TipStatusCompleted TipStatus = "completed"
	TipStatusFailed    TipStatus = "failed"
	TipStatusRefunded  TipStatus = "refunded"
)

// Tip is a one-off payment from a subscriber to a creator. The fee
// split is computed once at creation and never recomputed, so later
// platform fee changes do not alter historical tips.
type Tip struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	SubscriberID          snowflake.ID `gorm:"not null;index"`
	CreatorID             snowflake.ID `gorm:"not null;index"`
	Amount                int64        `gorm:"not null"`
	PlatformFee           int64        `gorm:"not null"`
	CreatorAmount         int64        `gorm:"not null"`
	Message               string       `gorm:"type:text"`
	Status                TipStatus    `gorm:"type:varchar(16);not null"`
	StripePaymentIntentID *string      `gorm:"type:text;uniqueIndex"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tip) TableName() string { return "tips" }
