package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertEarning(ctx context.Context, db *gorm.DB, earning *Earning) error
	FindEarningBySourceRef(ctx context.Context, db *gorm.DB, sourceRef string) (*Earning, error)
	ListEarningsByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]Earning, error)

	// FindUnpaidCreatorIDs returns creators holding unpaid earnings
	// created inside [start, end).
	FindUnpaidCreatorIDs(ctx context.Context, db *gorm.DB, start, end time.Time) ([]snowflake.ID, error)
	FindUnpaidByCreatorForUpdate(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, start, end time.Time) ([]Earning, error)
	MarkPaidOut(ctx context.Context, db *gorm.DB, ids []snowflake.ID, payoutDate time.Time) error

	InsertTransaction(ctx context.Context, db *gorm.DB, transaction *Transaction) error
	SummaryByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID) (*Summary, error)
}

// Summary aggregates a creator's ledger position.
type Summary struct {
	TotalGross int64 `gorm:"column:total_gross" json:"total_gross"`
	TotalFees  int64 `gorm:"column:total_fees" json:"total_fees"`
	TotalNet   int64 `gorm:"column:total_net" json:"total_net"`
	UnpaidNet  int64 `gorm:"column:unpaid_net" json:"unpaid_net"`
	PaidNet    int64 `gorm:"column:paid_net" json:"paid_net"`
}
