package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	obsmetrics "github.com/fanstack/fanstack/internal/observability/metrics"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobExpireDue      = "subscription.expire_due"
	jobRunBatch       = "payout.run_batch"
	jobProcessPending = "payout.process_pending"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	SubscriptionSvc subscriptiondomain.Service
	PayoutSvc       payoutdomain.Service
	Config          Config `optional:"true"`
}

type Scheduler struct {
	log   *zap.Logger
	cfg   Config
	genID *snowflake.Node
	clock clock.Clock

	subscriptionSvc subscriptiondomain.Service
	payoutSvc       payoutdomain.Service

	nextPayoutAt time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.SubscriptionSvc == nil || p.PayoutSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		genID:           p.GenID,
		clock:           p.Clock,
		subscriptionSvc: p.SubscriptionSvc,
		payoutSvc:       p.PayoutSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	runID := s.genID.Generate().String()
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)
	log.Info("scheduler.job.start")

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		log.Info("scheduler.job.finish",
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	// a deadline is a soft timeout: the next tick resumes the work
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	log.Error("scheduler.job.failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	if s.isJobEnabled(jobExpireDue) {
		err = errors.Join(err, s.runJob(parent, jobExpireDue, 30*time.Second, s.ExpireDueJob))
	}

	now := s.clock.Now()
	if !now.Before(s.nextPayoutAt) {
		if s.isJobEnabled(jobRunBatch) {
			err = errors.Join(err, s.runJob(parent, jobRunBatch, 5*time.Minute, s.RunPayoutBatchJob))
		}
		s.nextPayoutAt = now.Add(s.cfg.PayoutInterval)
	}

	if s.isJobEnabled(jobProcessPending) {
		err = errors.Join(err, s.runJob(parent, jobProcessPending, 5*time.Minute, s.ProcessPayoutsJob))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty EnabledJobs means every job runs (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireDueJob sweeps active subscriptions whose period lapsed. It
// loops until a sweep comes back empty so a backlog drains in one run.
func (s *Scheduler) ExpireDueJob(ctx context.Context) error {
	schedMetrics := obsmetrics.Scheduler()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		expired, err := s.subscriptionSvc.ExpireDue(ctx, s.clock.Now())
		if expired > 0 {
			schedMetrics.AddBatchProcessed(jobExpireDue, "subscriptions", expired)
		}
		if err != nil {
			return err
		}
		if expired == 0 {
			return nil
		}
	}
}

func (s *Scheduler) RunPayoutBatchJob(ctx context.Context) error {
	result, err := s.payoutSvc.RunBatch(ctx, s.clock.Now())
	if result.Created > 0 {
		obsmetrics.Scheduler().AddBatchProcessed(jobRunBatch, "payouts", result.Created)
	}
	return err
}

func (s *Scheduler) ProcessPayoutsJob(ctx context.Context) error {
	attempted, err := s.payoutSvc.ProcessPending(ctx)
	if attempted > 0 {
		obsmetrics.Scheduler().AddBatchProcessed(jobProcessPending, "payouts", attempted)
	}
	return err
}
