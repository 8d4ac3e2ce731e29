package domain

import (
	"context"
	"errors"
	"time"
)

type Response struct {
	ID            string       `json:"id"`
	CreatorID     string       `json:"creator_id"`
	Amount        int64        `json:"amount"`
	EarningsCount int64        `json:"earnings_count"`
	PeriodStart   time.Time    `json:"period_start"`
	PeriodEnd     time.Time    `json:"period_end"`
	Status        PayoutStatus `json:"status"`
	FailureReason string       `json:"failure_reason,omitempty"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// BatchResult summarizes one settlement run.
type BatchResult struct {
	Created     int   `json:"created"`
	Skipped     int   `json:"skipped"`
	TotalAmount int64 `json:"total_amount"`
}

type Service interface {
	// RunBatch settles the period ending at now: one pending payout per
	// creator with enough unpaid net earnings. Creators below the
	// minimum or with an overlapping payout are skipped.
	RunBatch(ctx context.Context, now time.Time) (BatchResult, error)
	// ProcessPending pushes pending payouts through the gateway and
	// returns how many were attempted. A failed transfer marks the
	// payout failed; its earnings are not re-queued.
	ProcessPending(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id string) (Response, error)
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]Response, error)
}

var (
	ErrInvalidPayout        = errors.New("invalid_payout")
	ErrPayoutNotFound       = errors.New("payout_not_found")
	ErrOverlappingPeriod    = errors.New("overlapping_payout_period")
	ErrMissingPayoutAccount = errors.New("missing_payout_account")
	ErrInvalidOperation     = errors.New("invalid_operation")
)
