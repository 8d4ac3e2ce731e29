package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	accountrepo "github.com/fanstack/fanstack/internal/account/repository"
	accountservice "github.com/fanstack/fanstack/internal/account/service"
	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	creatorrepo "github.com/fanstack/fanstack/internal/creator/repository"
	"github.com/fanstack/fanstack/internal/gateway/fake"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	ledgerrepo "github.com/fanstack/fanstack/internal/ledger/repository"
	ledgerservice "github.com/fanstack/fanstack/internal/ledger/service"
	"github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/subscription/repository"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNode = func() *snowflake.Node {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		return node
	}()
	dbSeq atomic.Int64
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:subscription_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.User{},
		&creatordomain.Creator{},
		&domain.Subscription{},
		&domain.SubscriptionHistory{},
		&ledgerdomain.Earning{},
		&ledgerdomain.Transaction{},
	))
	return db
}

type testEnv struct {
	db  *gorm.DB
	clk *clock.FakeClock
	gw  *fake.Gateway
	svc domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	gw := fake.New(clk)
	logger := zap.NewNop()
	platform := config.NewStaticPlatformConfigHolder(config.DefaultPlatformConfig())

	accountsvc := accountservice.NewService(accountservice.ServiceParam{
		DB:      db,
		Log:     logger,
		GenID:   testNode,
		Clock:   clk,
		Repo:    accountrepo.Provide(),
		Gateway: gw,
	})
	ledgersvc := ledgerservice.NewService(ledgerservice.ServiceParam{
		DB:          db,
		Log:         logger,
		GenID:       testNode,
		Clock:       clk,
		Repo:        ledgerrepo.Provide(),
		CreatorRepo: creatorrepo.Provide(),
		Platform:    platform,
	})
	svc := NewService(ServiceParam{
		DB:          db,
		Log:         logger,
		GenID:       testNode,
		Clock:       clk,
		Repo:        repository.Provide(),
		CreatorRepo: creatorrepo.Provide(),
		Accountsvc:  accountsvc,
		Ledgersvc:   ledgersvc,
		Gateway:     gw,
	})

	return &testEnv{db: db, clk: clk, gw: gw, svc: svc}
}

func (e *testEnv) seedUser(t *testing.T) *accountdomain.User {
	t.Helper()

	id := testNode.Generate()
	user := accountdomain.User{
		ID:          id,
		Email:       fmt.Sprintf("user%s@example.com", id),
		UserName:    fmt.Sprintf("user%s", id),
		DisplayName: "Test User",
		AccountType: accountdomain.AccountTypeSubscriber,
		CreatedAt:   e.clk.Now(),
		UpdatedAt:   e.clk.Now(),
	}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *testEnv) seedCreator(t *testing.T, subscriberCount int64) *creatordomain.Creator {
	t.Helper()

	creator := creatordomain.Creator{
		ID:                testNode.Generate(),
		UserID:            testNode.Generate(),
		DisplayName:       "Creator",
		SubscriptionPrice: 999,
		SubscriberCount:   subscriberCount,
		AcceptsTips:       true,
		AllowsMessages:    true,
		IsActive:          true,
		CreatedAt:         e.clk.Now(),
		UpdatedAt:         e.clk.Now(),
	}
	require.NoError(t, e.db.Create(&creator).Error)
	return &creator
}

func (e *testEnv) asUser(user *accountdomain.User) context.Context {
	return usercontext.WithUserID(context.Background(), user.ID.String())
}

func (e *testEnv) reloadCreator(t *testing.T, id snowflake.ID) *creatordomain.Creator {
	t.Helper()

	var creator creatordomain.Creator
	require.NoError(t, e.db.First(&creator, "id = ?", id).Error)
	return &creator
}

func (e *testEnv) reloadSubscription(t *testing.T, id string) *domain.Subscription {
	t.Helper()

	var subscription domain.Subscription
	require.NoError(t, e.db.First(&subscription, "id = ?", id).Error)
	return &subscription
}

func TestCreateSubscription(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	resp, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{
		CreatorID:          creator.ID.String(),
		PaymentMethodToken: "pm_tok_visa",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusActive, resp.Status)
	assert.Equal(t, int64(999), resp.PriceSnapshot)
	assert.Equal(t, subscriber.ID.String(), resp.SubscriberID)
	assert.True(t, resp.CurrentPeriodEnd.After(resp.CurrentPeriodStart))

	assert.Equal(t, int64(1), env.reloadCreator(t, creator.ID).SubscriberCount)

	// gateway saw the customer and the subscription before any local write
	require.Len(t, env.gw.Customers, 1)
	require.Len(t, env.gw.Subscriptions, 1)
	assert.Equal(t, int64(999), env.gw.Subscriptions[0].PriceCents)

	var history []domain.SubscriptionHistory
	require.NoError(t, env.db.Find(&history, "subscription_id = ?", resp.ID).Error)
	require.Len(t, history, 1)
	assert.Equal(t, domain.HistoryActionCreated, history[0].Action)
	assert.Equal(t, int64(999), history[0].Amount)
}

func TestCreateSubscription_PriceSnapshotUnaffectedByPriceChange(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	resp, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&creatordomain.Creator{}).
		Where("id = ?", creator.ID).
		Update("subscription_price", 1999).Error)

	got, err := env.svc.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.PriceSnapshot)
}

func TestCreateSubscription_DuplicateAnyStatus(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	// even a cancelled subscription blocks a second one for the pair
	now := env.clk.Now()
	cancelled := now.Add(-time.Hour)
	require.NoError(t, env.db.Create(&domain.Subscription{
		ID:                 testNode.Generate(),
		SubscriberID:       subscriber.ID,
		CreatorID:          creator.ID,
		Status:             domain.SubscriptionStatusCancelled,
		PriceSnapshot:      999,
		CurrentPeriodStart: now.Add(-24 * time.Hour),
		CurrentPeriodEnd:   now.Add(6 * 24 * time.Hour),
		CancelledAt:        &cancelled,
		CreatedAt:          now.Add(-24 * time.Hour),
		UpdatedAt:          cancelled,
	}).Error)

	_, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	assert.ErrorIs(t, err, domain.ErrDuplicateSubscription)
}

func TestCreateSubscription_SelfSubscribe(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)

	// make the caller the profile owner
	require.NoError(t, env.db.Model(&creatordomain.Creator{}).
		Where("id = ?", creator.ID).
		Update("user_id", subscriber.ID).Error)

	_, err := env.svc.Create(env.asUser(subscriber), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestCreateSubscription_InactiveCreator(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	require.NoError(t, env.db.Model(&creatordomain.Creator{}).
		Where("id = ?", creator.ID).
		Update("is_active", false).Error)

	_, err := env.svc.Create(env.asUser(subscriber), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	assert.ErrorIs(t, err, creatordomain.ErrCreatorNotFound)
}

func TestCreateSubscription_GatewayFailureLeavesNoRows(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)

	env.gw.FailNext("create_subscription", fmt.Errorf("provider unavailable"))

	_, err := env.svc.Create(env.asUser(subscriber), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.Error(t, err)

	var count int64
	require.NoError(t, env.db.Model(&domain.Subscription{}).
		Where("subscriber_id = ?", subscriber.ID).
		Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, int64(0), env.reloadCreator(t, creator.ID).SubscriberCount)
}

func TestCreateSubscription_CounterDriftRollsBack(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	// a pre-drifted counter must fail the cross-check and roll back
	creator := env.seedCreator(t, 5)

	_, err := env.svc.Create(env.asUser(subscriber), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	assert.ErrorIs(t, err, domain.ErrConsistencyViolation)

	var count int64
	require.NoError(t, env.db.Model(&domain.Subscription{}).
		Where("subscriber_id = ?", subscriber.ID).
		Count(&count).Error)
	assert.Zero(t, count)
}

func TestCancelAndReactivate(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	created, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, int64(0), env.reloadCreator(t, creator.ID).SubscriberCount)

	// cancelling twice is rejected
	_, err = env.svc.Cancel(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	reactivated, err := env.svc.Reactivate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, reactivated.Status)
	assert.Nil(t, reactivated.CancelledAt)
	assert.Equal(t, int64(1), env.reloadCreator(t, creator.ID).SubscriberCount)

	history, err := env.svc.History(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.HistoryActionCreated, history[0].Action)
	assert.Equal(t, domain.HistoryActionCancelled, history[1].Action)
	assert.Equal(t, domain.HistoryActionReactivated, history[2].Action)
}

func TestCancel_ForeignSubscriptionLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t)
	stranger := env.seedUser(t)
	creator := env.seedCreator(t, 0)

	created, err := env.svc.Create(env.asUser(owner), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	_, err = env.svc.Cancel(env.asUser(stranger), created.ID)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestExpireDue(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	other := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	creator2 := env.seedCreator(t, 0)

	created, err := env.svc.Create(env.asUser(subscriber), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	// second subscription starts later and stays inside its period
	env.clk.Advance(10 * 24 * time.Hour)
	fresh, err := env.svc.Create(env.asUser(other), domain.CreateSubscriptionRequest{CreatorID: creator2.ID.String()})
	require.NoError(t, err)

	env.clk.Advance(21 * 24 * time.Hour)
	expired, err := env.svc.ExpireDue(context.Background(), env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, domain.SubscriptionStatusExpired, env.reloadSubscription(t, created.ID).Status)
	assert.Equal(t, domain.SubscriptionStatusActive, env.reloadSubscription(t, fresh.ID).Status)
	assert.Equal(t, int64(0), env.reloadCreator(t, creator.ID).SubscriberCount)
	assert.Equal(t, int64(1), env.reloadCreator(t, creator2.ID).SubscriberCount)

	// a second sweep finds nothing
	expired, err = env.svc.ExpireDue(context.Background(), env.clk.Now())
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestReactivate_ExpiredIsDeadEnd(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	created, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	env.clk.Advance(31 * 24 * time.Hour)
	expired, err := env.svc.ExpireDue(context.Background(), env.clk.Now())
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	_, err = env.svc.Reactivate(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestMarkRenewed_PendingActivates(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)

	now := env.clk.Now()
	providerRef := "sub_provider_pending"
	pending := domain.Subscription{
		ID:                   testNode.Generate(),
		SubscriberID:         subscriber.ID,
		CreatorID:            creator.ID,
		Status:               domain.SubscriptionStatusPending,
		PriceSnapshot:        999,
		StripeSubscriptionID: &providerRef,
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     now.Add(30 * 24 * time.Hour),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	require.NoError(t, env.db.Create(&pending).Error)

	err := env.svc.MarkRenewed(context.Background(), domain.RenewalEvent{
		ProviderSubscriptionID: providerRef,
		InvoiceID:              "in_first",
		Amount:                 999,
		PeriodStart:            now,
		PeriodEnd:              now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusActive, env.reloadSubscription(t, pending.ID.String()).Status)
	assert.Equal(t, int64(1), env.reloadCreator(t, creator.ID).SubscriberCount)

	var earning ledgerdomain.Earning
	require.NoError(t, env.db.First(&earning, "source_ref = ?", "in_first").Error)
	assert.Equal(t, ledgerdomain.EarningTypeSubscription, earning.Type)
	assert.Equal(t, int64(999), earning.GrossAmount)
	assert.Equal(t, int64(200), earning.PlatformFee)
	assert.Equal(t, int64(799), earning.NetAmount)
	assert.Equal(t, earning.GrossAmount, earning.PlatformFee+earning.NetAmount)

	assert.Equal(t, int64(799), env.reloadCreator(t, creator.ID).TotalEarnings)
}

func TestMarkRenewed_InvoiceReplayRecordsOneEarning(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	created, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	providerRef := env.reloadSubscription(t, created.ID).StripeSubscriptionID
	require.NotNil(t, providerRef)

	event := domain.RenewalEvent{
		ProviderSubscriptionID: *providerRef,
		InvoiceID:              "in_replayed",
		Amount:                 999,
	}
	require.NoError(t, env.svc.MarkRenewed(context.Background(), event))
	require.NoError(t, env.svc.MarkRenewed(context.Background(), event))

	var count int64
	require.NoError(t, env.db.Model(&ledgerdomain.Earning{}).
		Where("source_ref = ?", "in_replayed").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, int64(799), env.reloadCreator(t, creator.ID).TotalEarnings)
	assert.Equal(t, int64(1), env.reloadCreator(t, creator.ID).SubscriberCount)
}

func TestMarkRenewed_AdvancesPeriodWithoutEventBounds(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)

	created, err := env.svc.Create(env.asUser(subscriber), domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)
	before := env.reloadSubscription(t, created.ID)

	require.NoError(t, env.svc.MarkRenewed(context.Background(), domain.RenewalEvent{
		ProviderSubscriptionID: *before.StripeSubscriptionID,
		InvoiceID:              "in_no_bounds",
	}))

	after := env.reloadSubscription(t, created.ID)
	assert.True(t, after.CurrentPeriodStart.Equal(before.CurrentPeriodEnd))
	assert.True(t, after.CurrentPeriodEnd.Equal(before.CurrentPeriodEnd.Add(30*24*time.Hour)))

	// no event amount: the snapshot price is charged
	var earning ledgerdomain.Earning
	require.NoError(t, env.db.First(&earning, "source_ref = ?", "in_no_bounds").Error)
	assert.Equal(t, int64(999), earning.GrossAmount)
}

func TestMarkRenewed_CancelledIgnored(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	created, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, created.ID)
	require.NoError(t, err)

	providerRef := env.reloadSubscription(t, created.ID).StripeSubscriptionID
	require.NotNil(t, providerRef)

	require.NoError(t, env.svc.MarkRenewed(context.Background(), domain.RenewalEvent{
		ProviderSubscriptionID: *providerRef,
		InvoiceID:              "in_late",
		Amount:                 999,
	}))

	assert.Equal(t, domain.SubscriptionStatusCancelled, env.reloadSubscription(t, created.ID).Status)

	var count int64
	require.NoError(t, env.db.Model(&ledgerdomain.Earning{}).
		Where("source_ref = ?", "in_late").
		Count(&count).Error)
	assert.Zero(t, count)
}

func TestMarkPaymentFailed(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	created, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)
	providerRef := env.reloadSubscription(t, created.ID).StripeSubscriptionID
	require.NotNil(t, providerRef)

	require.NoError(t, env.svc.MarkPaymentFailed(context.Background(), domain.PaymentFailureEvent{
		ProviderSubscriptionID: *providerRef,
		InvoiceID:              "in_failed",
	}))

	// the subscription itself is untouched; the provider retries
	assert.Equal(t, domain.SubscriptionStatusActive, env.reloadSubscription(t, created.ID).Status)

	history, err := env.svc.History(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.HistoryActionPaymentFailed, history[1].Action)
	assert.Equal(t, "in_failed", history[1].StripeInvoiceID)
}

func TestHasActiveSubscription(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	ok, err := env.svc.HasActiveSubscription(context.Background(), subscriber.ID.String(), creator.ID.String())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)

	ok, err = env.svc.HasActiveSubscription(context.Background(), subscriber.ID.String(), creator.ID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	// access lapses with the period even before the sweep runs
	env.clk.Advance(31 * 24 * time.Hour)
	ok, err = env.svc.HasActiveSubscription(context.Background(), subscriber.ID.String(), creator.ID.String())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListBySubscriberAndGetByID(t *testing.T) {
	env := newTestEnv(t)
	subscriber := env.seedUser(t)
	creator := env.seedCreator(t, 0)
	creator2 := env.seedCreator(t, 0)
	ctx := env.asUser(subscriber)

	first, err := env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator.ID.String()})
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, domain.CreateSubscriptionRequest{CreatorID: creator2.ID.String()})
	require.NoError(t, err)

	list, err := env.svc.ListBySubscriber(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := env.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = env.svc.GetByID(ctx, testNode.Generate().String())
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}
