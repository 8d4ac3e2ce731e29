package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	creatorrepo "github.com/fanstack/fanstack/internal/creator/repository"
	"github.com/fanstack/fanstack/internal/ledger/domain"
	"github.com/fanstack/fanstack/internal/ledger/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNode = func() *snowflake.Node {
		node, err := snowflake.NewNode(4)
		if err != nil {
			panic(err)
		}
		return node
	}()
	dbSeq atomic.Int64
)

func newTestService(t *testing.T) (*gorm.DB, *clock.FakeClock, domain.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&creatordomain.Creator{},
		&domain.Earning{},
		&domain.Transaction{},
	))

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       testNode,
		Clock:       clk,
		Repo:        repository.Provide(),
		CreatorRepo: creatorrepo.Provide(),
		Platform:    config.NewStaticPlatformConfigHolder(config.DefaultPlatformConfig()),
	})
	return db, clk, svc
}

func seedCreator(t *testing.T, db *gorm.DB, at time.Time) *creatordomain.Creator {
	t.Helper()

	creator := creatordomain.Creator{
		ID:                testNode.Generate(),
		UserID:            testNode.Generate(),
		DisplayName:       "Creator",
		SubscriptionPrice: 999,
		AcceptsTips:       true,
		AllowsMessages:    true,
		IsActive:          true,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	require.NoError(t, db.Create(&creator).Error)
	return &creator
}

func TestRecord(t *testing.T) {
	db, clk, svc := newTestService(t)
	creator := seedCreator(t, db, clk.Now())
	ctx := context.Background()

	tipID := testNode.Generate()
	earning, err := svc.Record(ctx, db, domain.RecordEarningInput{
		CreatorID:   creator.ID,
		Type:        domain.EarningTypeTip,
		GrossAmount: 1000,
		TipID:       &tipID,
		SourceRef:   "pi_record",
		OccurredAt:  clk.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), earning.GrossAmount)
	assert.Equal(t, int64(200), earning.PlatformFee)
	assert.Equal(t, int64(800), earning.NetAmount)
	assert.False(t, earning.IsPaidOut)

	var transaction domain.Transaction
	require.NoError(t, db.First(&transaction, "stripe_ref = ?", "pi_record").Error)
	assert.Equal(t, domain.TransactionTypeTip, transaction.Type)
	assert.Equal(t, domain.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, int64(1000), transaction.Amount)

	var reloaded creatordomain.Creator
	require.NoError(t, db.First(&reloaded, "id = ?", creator.ID).Error)
	assert.Equal(t, int64(800), reloaded.TotalEarnings)
}

func TestRecord_SourceRefDedupe(t *testing.T) {
	db, clk, svc := newTestService(t)
	creator := seedCreator(t, db, clk.Now())
	ctx := context.Background()

	in := domain.RecordEarningInput{
		CreatorID:   creator.ID,
		Type:        domain.EarningTypeSubscription,
		GrossAmount: 999,
		SourceRef:   "in_dedupe",
		OccurredAt:  clk.Now(),
	}

	first, err := svc.Record(ctx, db, in)
	require.NoError(t, err)
	second, err := svc.Record(ctx, db, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&domain.Earning{}).
		Where("source_ref = ?", "in_dedupe").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// the replay must not double the running total
	var reloaded creatordomain.Creator
	require.NoError(t, db.First(&reloaded, "id = ?", creator.ID).Error)
	assert.Equal(t, int64(799), reloaded.TotalEarnings)
}

func TestRecord_Validation(t *testing.T) {
	db, clk, svc := newTestService(t)
	creator := seedCreator(t, db, clk.Now())
	ctx := context.Background()

	_, err := svc.Record(ctx, db, domain.RecordEarningInput{
		Type: domain.EarningTypeTip, GrossAmount: 100, SourceRef: "pi_x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCreator)

	_, err = svc.Record(ctx, db, domain.RecordEarningInput{
		CreatorID: creator.ID, Type: domain.EarningTypeTip, GrossAmount: 0, SourceRef: "pi_x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Record(ctx, db, domain.RecordEarningInput{
		CreatorID: creator.ID, Type: domain.EarningTypeTip, GrossAmount: 100, SourceRef: "   ",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSourceRef)

	subscriptionID := testNode.Generate()
	tipID := testNode.Generate()
	_, err = svc.Record(ctx, db, domain.RecordEarningInput{
		CreatorID:      creator.ID,
		Type:           domain.EarningTypeTip,
		GrossAmount:    100,
		SourceRef:      "pi_both",
		SubscriptionID: &subscriptionID,
		TipID:          &tipID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEarning)
}

func TestSummaryAndListByCreator(t *testing.T) {
	db, clk, svc := newTestService(t)
	creator := seedCreator(t, db, clk.Now())
	ctx := context.Background()

	_, err := svc.Record(ctx, db, domain.RecordEarningInput{
		CreatorID: creator.ID, Type: domain.EarningTypeTip, GrossAmount: 1000, SourceRef: "pi_a", OccurredAt: clk.Now(),
	})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = svc.Record(ctx, db, domain.RecordEarningInput{
		CreatorID: creator.ID, Type: domain.EarningTypeSubscription, GrossAmount: 999, SourceRef: "in_b", OccurredAt: clk.Now(),
	})
	require.NoError(t, err)

	// flag one earning as settled
	paidAt := clk.Now()
	require.NoError(t, db.Model(&domain.Earning{}).
		Where("source_ref = ?", "pi_a").
		Updates(map[string]any{"is_paid_out": true, "payout_date": paidAt}).Error)

	summary, err := svc.SummaryByCreator(ctx, creator.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1999), summary.Summary.TotalGross)
	assert.Equal(t, int64(400), summary.Summary.TotalFees)
	assert.Equal(t, int64(1599), summary.Summary.TotalNet)
	assert.Equal(t, int64(800), summary.Summary.PaidNet)
	assert.Equal(t, int64(799), summary.Summary.UnpaidNet)

	entries, err := svc.ListByCreator(ctx, creator.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, entry.GrossAmount, entry.PlatformFee+entry.NetAmount)
	}
}
