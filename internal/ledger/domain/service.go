package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RecordEarningInput struct {
	CreatorID      snowflake.ID
	Type           EarningType
	GrossAmount    int64
	SubscriptionID *snowflake.ID
	TipID          *snowflake.ID
	SourceRef      string
	OccurredAt     time.Time
}

type SummaryResponse struct {
	CreatorID string  `json:"creator_id"`
	Summary   Summary `json:"summary"`
}

type EntryResponse struct {
	ID             string      `json:"id"`
	CreatorID      string      `json:"creator_id"`
	Type           EarningType `json:"type"`
	GrossAmount    int64       `json:"gross_amount"`
	PlatformFee    int64       `json:"platform_fee"`
	NetAmount      int64       `json:"net_amount"`
	SubscriptionID string      `json:"subscription_id,omitempty"`
	TipID          string      `json:"tip_id,omitempty"`
	SourceRef      string      `json:"source_ref"`
	IsPaidOut      bool        `json:"is_paid_out"`
	PayoutDate     *time.Time  `json:"payout_date,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Service records earnings and serves ledger queries. Record runs
// against the caller's transaction so an earning commits atomically
// with the lifecycle change that produced it.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, in RecordEarningInput) (*Earning, error)
	SummaryByCreator(ctx context.Context, creatorID string) (SummaryResponse, error)
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]EntryResponse, error)
}

var (
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidSourceRef = errors.New("invalid_source_ref")
	ErrInvalidEarning   = errors.New("invalid_earning")
	ErrInvalidCreator   = errors.New("invalid_creator")
)
