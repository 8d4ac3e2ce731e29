// Package domain contains persistence models for creator payouts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Payout is a batched transfer of a creator's unpaid net earnings for
// one settlement period. The unique index over creator and period
// boundaries prevents the same window from being paid twice.
type Payout struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	CreatorID        snowflake.ID `gorm:"not null;uniqueIndex:idx_creator_period"`
	Amount           int64        `gorm:"not null"`
	EarningsCount    int64        `gorm:"not null;default:0"`
	PeriodStart      time.Time    `gorm:"not null;uniqueIndex:idx_creator_period"`
	PeriodEnd        time.Time    `gorm:"not null;uniqueIndex:idx_creator_period"`
	Status           PayoutStatus `gorm:"type:varchar(16);not null"`
	StripeTransferID *string      `gorm:"type:text"`
	FailureReason    string       `gorm:"type:text"`
	PaidAt           *time.Time
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }
