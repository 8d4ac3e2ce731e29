package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(9)
	if err != nil {
		panic(err)
	}
	return node
}()

// stubSubscriptions returns scripted sweep counts, one per call.
type stubSubscriptions struct {
	sweeps []int
	calls  int
	err    error
}

func (s *stubSubscriptions) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.sweeps) == 0 {
		return 0, nil
	}
	next := s.sweeps[0]
	s.sweeps = s.sweeps[1:]
	return next, nil
}

func (s *stubSubscriptions) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
}

func (s *stubSubscriptions) Cancel(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
}

func (s *stubSubscriptions) Reactivate(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
}

func (s *stubSubscriptions) GetByID(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrSubscriptionNotFound
}

func (s *stubSubscriptions) ListBySubscriber(ctx context.Context) ([]subscriptiondomain.Response, error) {
	return nil, nil
}

func (s *stubSubscriptions) History(ctx context.Context, id string) ([]subscriptiondomain.HistoryEntry, error) {
	return nil, nil
}

func (s *stubSubscriptions) HasActiveSubscription(ctx context.Context, subscriberID, creatorID string) (bool, error) {
	return false, nil
}

func (s *stubSubscriptions) MarkRenewed(ctx context.Context, event subscriptiondomain.RenewalEvent) error {
	return nil
}

func (s *stubSubscriptions) MarkPaymentFailed(ctx context.Context, event subscriptiondomain.PaymentFailureEvent) error {
	return nil
}

// stubPayouts counts settlement calls.
type stubPayouts struct {
	batchRuns   int
	processRuns int
	batchErr    error
}

func (s *stubPayouts) RunBatch(ctx context.Context, now time.Time) (payoutdomain.BatchResult, error) {
	s.batchRuns++
	if s.batchErr != nil {
		return payoutdomain.BatchResult{}, s.batchErr
	}
	return payoutdomain.BatchResult{Created: 1}, nil
}

func (s *stubPayouts) ProcessPending(ctx context.Context) (int, error) {
	s.processRuns++
	return 0, nil
}

func (s *stubPayouts) GetByID(ctx context.Context, id string) (payoutdomain.Response, error) {
	return payoutdomain.Response{}, payoutdomain.ErrPayoutNotFound
}

func (s *stubPayouts) ListByCreator(ctx context.Context, creatorID string, limit int) ([]payoutdomain.Response, error) {
	return nil, nil
}

func newScheduler(t *testing.T, subscriptions *stubSubscriptions, payouts *stubPayouts, clk clock.Clock, cfg Config) *Scheduler {
	t.Helper()

	s, err := New(Params{
		Log:             zap.NewNop(),
		GenID:           testNode,
		Clock:           clk,
		SubscriptionSvc: subscriptions,
		PayoutSvc:       payouts,
		Config:          cfg,
	})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop(), GenID: testNode})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnce_RunsAllJobs(t *testing.T) {
	subscriptions := &stubSubscriptions{sweeps: []int{3, 2}}
	payouts := &stubPayouts{}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := newScheduler(t, subscriptions, payouts, clk, Config{})

	require.NoError(t, s.RunOnce(context.Background()))

	// the sweep drains the backlog until a pass comes back empty
	assert.Equal(t, 3, subscriptions.calls)
	assert.Equal(t, 1, payouts.batchRuns)
	assert.Equal(t, 1, payouts.processRuns)
}

func TestRunOnce_PayoutBatchHonorsInterval(t *testing.T) {
	subscriptions := &stubSubscriptions{}
	payouts := &stubPayouts{}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := newScheduler(t, subscriptions, payouts, clk, Config{PayoutInterval: 24 * time.Hour})

	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, payouts.batchRuns)

	// every tick still sweeps and settles
	assert.Equal(t, 2, subscriptions.calls)
	assert.Equal(t, 2, payouts.processRuns)

	clk.Advance(25 * time.Hour)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 2, payouts.batchRuns)
}

func TestRunOnce_EnabledJobsFilter(t *testing.T) {
	subscriptions := &stubSubscriptions{}
	payouts := &stubPayouts{}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := newScheduler(t, subscriptions, payouts, clk, Config{
		EnabledJobs: []string{"subscription.expire_due"},
	})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, 1, subscriptions.calls)
	assert.Zero(t, payouts.batchRuns)
	assert.Zero(t, payouts.processRuns)
}

func TestRunOnce_JobFailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("boom")
	subscriptions := &stubSubscriptions{err: boom}
	payouts := &stubPayouts{}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := newScheduler(t, subscriptions, payouts, clk, Config{})

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)

	// the failing sweep does not block settlement
	assert.Equal(t, 1, payouts.batchRuns)
	assert.Equal(t, 1, payouts.processRuns)
}
