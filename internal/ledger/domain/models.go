// Package domain contains the earnings ledger models. Rows are
// append-only; the only mutable earning fields are the payout flags.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EarningType string

const (
	EarningTypeSubscription EarningType = "subscription"
	EarningTypeTip          EarningType = "tip"
	EarningTypeBonus        EarningType = "bonus"
)

// Earning records a creator's share of a single payment. The amounts
// always satisfy gross == fee + net. SourceRef is the provider's
// payment reference and is the dedupe key for replayed events.
type Earning struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	CreatorID      snowflake.ID  `gorm:"not null;index"`
	Type           EarningType   `gorm:"type:text;not null"`
	GrossAmount    int64         `gorm:"not null"`
	PlatformFee    int64         `gorm:"not null"`
	NetAmount      int64         `gorm:"not null"`
	SubscriptionID *snowflake.ID `gorm:"index"`
	TipID          *snowflake.ID `gorm:"index"`
	SourceRef      string        `gorm:"type:text;not null;uniqueIndex"`
	IsPaidOut      bool          `gorm:"not null;default:false"`
	PayoutDate     *time.Time    `gorm:""`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Earning) TableName() string { return "earnings" }

type TransactionType string

const (
	TransactionTypeSubscription TransactionType = "subscription_payment"
	TransactionTypeTip          TransactionType = "tip"
	TransactionTypePayout       TransactionType = "payout"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the immutable money-movement log.
type Transaction struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	Type           TransactionType   `gorm:"type:text;not null"`
	Amount         int64             `gorm:"not null"`
	Status         TransactionStatus `gorm:"type:text;not null"`
	StripeRef      string            `gorm:"type:text"`
	SubscriptionID *snowflake.ID     `gorm:"index"`
	TipID          *snowflake.ID     `gorm:"index"`
	PayoutID       *snowflake.ID     `gorm:"index"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }
