package service

import (
	"context"
	"strings"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	gatewaydomain "github.com/fanstack/fanstack/internal/gateway/domain"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	"github.com/fanstack/fanstack/internal/observability/metrics"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeCreated       = "created"
	outcomeBelowMinimum  = "below_minimum"
	outcomeOverlap       = "overlap"
	outcomeTransferOK    = "transfer_ok"
	outcomeTransferFail  = "transfer_failed"
	outcomeNoDestination = "no_destination"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	platform    *config.PlatformConfigHolder
	repo        payoutdomain.Repository
	ledgerRepo  ledgerdomain.Repository
	creatorRepo creatordomain.Repository

	gateway gatewaydomain.Gateway
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Platform    *config.PlatformConfigHolder
	Repo        payoutdomain.Repository
	LedgerRepo  ledgerdomain.Repository
	CreatorRepo creatordomain.Repository

	Gateway gatewaydomain.Gateway
	Metrics *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) payoutdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payout.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		platform:    p.Platform,
		repo:        p.Repo,
		ledgerRepo:  p.LedgerRepo,
		creatorRepo: p.CreatorRepo,

		gateway: p.Gateway,
		metrics: p.Metrics,
	}
}

// RunBatch settles the window [now - payout period, now). Earnings are
// locked, summed and flagged inside one transaction per creator so a
// crash mid-batch leaves the remaining creators untouched for the next
// run.
func (s *Service) RunBatch(ctx context.Context, now time.Time) (payoutdomain.BatchResult, error) {
	platform := s.platform.Get()
	end := now
	start := end.AddDate(0, 0, -platform.PayoutPeriodDays)

	creatorIDs, err := s.ledgerRepo.FindUnpaidCreatorIDs(ctx, s.db, start, end)
	if err != nil {
		return payoutdomain.BatchResult{}, err
	}

	var result payoutdomain.BatchResult
	for _, creatorID := range creatorIDs {
		overlap, err := s.repo.FindOverlapping(ctx, s.db, creatorID, start, end)
		if err != nil {
			return result, err
		}
		if overlap != nil {
			result.Skipped++
			s.metrics.RecordPayoutBatch(outcomeOverlap)
			continue
		}

		created, amount, err := s.settleCreator(ctx, creatorID, start, end, platform.MinPayoutCents)
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				result.Skipped++
				s.metrics.RecordPayoutBatch(outcomeOverlap)
				continue
			}
			return result, err
		}

		if created {
			result.Created++
			result.TotalAmount += amount
			s.metrics.RecordPayoutBatch(outcomeCreated)
		} else {
			result.Skipped++
			s.metrics.RecordPayoutBatch(outcomeBelowMinimum)
		}
	}

	s.log.Info("payout batch finished",
		zap.Time("period_start", start),
		zap.Time("period_end", end),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int64("total_amount", result.TotalAmount),
	)
	return result, nil
}

func (s *Service) settleCreator(ctx context.Context, creatorID snowflake.ID, start, end time.Time, minPayout int64) (bool, int64, error) {
	var (
		created bool
		amount  int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		earnings, err := s.ledgerRepo.FindUnpaidByCreatorForUpdate(ctx, tx, creatorID, start, end)
		if err != nil {
			return err
		}
		if len(earnings) == 0 {
			return nil
		}

		var total int64
		ids := make([]snowflake.ID, 0, len(earnings))
		for _, earning := range earnings {
			total += earning.NetAmount
			ids = append(ids, earning.ID)
		}
		if total < minPayout {
			return nil
		}

		now := s.clock.Now()
		payout := payoutdomain.Payout{
			ID:            s.genID.Generate(),
			CreatorID:     creatorID,
			Amount:        total,
			EarningsCount: int64(len(ids)),
			PeriodStart:   start,
			PeriodEnd:     end,
			Status:        payoutdomain.PayoutStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, &payout); err != nil {
			return err
		}

		if err := s.ledgerRepo.MarkPaidOut(ctx, tx, ids, now); err != nil {
			return err
		}

		created = true
		amount = total
		return nil
	})
	return created, amount, err
}

// ProcessPending moves pending payouts through the gateway. Each payout
// is claimed first so two concurrent runs never transfer twice; a
// failed transfer is terminal for the payout and its earnings.
func (s *Service) ProcessPending(ctx context.Context) (int, error) {
	payouts, err := s.repo.ListByStatus(ctx, s.db, payoutdomain.PayoutStatusPending, 50)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range payouts {
		claimed, err := s.claim(ctx, payouts[i].ID)
		if err != nil {
			return attempted, err
		}
		if claimed == nil {
			continue
		}

		attempted++
		if err := s.transfer(ctx, claimed); err != nil {
			return attempted, err
		}
	}
	return attempted, nil
}

func (s *Service) claim(ctx context.Context, id snowflake.ID) (*payoutdomain.Payout, error) {
	var claimed *payoutdomain.Payout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != payoutdomain.PayoutStatusPending {
			return nil
		}

		locked.Status = payoutdomain.PayoutStatusProcessing
		locked.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, locked); err != nil {
			return err
		}
		claimed = locked
		return nil
	})
	return claimed, err
}

func (s *Service) transfer(ctx context.Context, payout *payoutdomain.Payout) error {
	creator, err := s.creatorRepo.FindByID(ctx, s.db, payout.CreatorID)
	if err != nil {
		return err
	}
	if creator == nil || creator.StripeAccountID == nil || *creator.StripeAccountID == "" {
		s.metrics.RecordPayoutBatch(outcomeNoDestination)
		return s.finish(ctx, payout, payoutdomain.PayoutStatusFailed, "", payoutdomain.ErrMissingPayoutAccount.Error())
	}

	result, err := s.gateway.CreateTransfer(ctx, gatewaydomain.CreateTransferInput{
		DestinationAccountID: *creator.StripeAccountID,
		AmountCents:          payout.Amount,
		Currency:             "usd",
		IdempotencyKey:       uuid.NewString(),
		Metadata: map[string]string{
			"payout_id":  payout.ID.String(),
			"creator_id": payout.CreatorID.String(),
		},
	})
	if err != nil {
		s.log.Error("payout transfer failed",
			zap.String("payout_id", payout.ID.String()),
			zap.Error(err),
		)
		s.metrics.RecordPayoutBatch(outcomeTransferFail)
		return s.finish(ctx, payout, payoutdomain.PayoutStatusFailed, "", err.Error())
	}

	s.metrics.RecordPayoutBatch(outcomeTransferOK)
	return s.finish(ctx, payout, payoutdomain.PayoutStatusCompleted, result.ProviderTransferID, "")
}

func (s *Service) finish(ctx context.Context, payout *payoutdomain.Payout, status payoutdomain.PayoutStatus, transferRef, failureReason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		payout.Status = status
		payout.FailureReason = failureReason
		payout.UpdatedAt = now
		if status == payoutdomain.PayoutStatusCompleted {
			payout.StripeTransferID = &transferRef
			payout.PaidAt = &now
		}
		if err := s.repo.UpdateStatus(ctx, tx, payout); err != nil {
			return err
		}

		transactionStatus := ledgerdomain.TransactionStatusCompleted
		if status == payoutdomain.PayoutStatusFailed {
			transactionStatus = ledgerdomain.TransactionStatusFailed
		}
		payoutID := payout.ID
		return s.ledgerRepo.InsertTransaction(ctx, tx, &ledgerdomain.Transaction{
			ID:        s.genID.Generate(),
			Type:      ledgerdomain.TransactionTypePayout,
			Amount:    payout.Amount,
			Status:    transactionStatus,
			StripeRef: transferRef,
			PayoutID:  &payoutID,
			CreatedAt: now,
		})
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (payoutdomain.Response, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return payoutdomain.Response{}, err
	}

	payoutID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || payoutID == 0 {
		return payoutdomain.Response{}, payoutdomain.ErrInvalidPayout
	}

	payout, err := s.repo.FindByID(ctx, s.db, payoutID)
	if err != nil {
		return payoutdomain.Response{}, err
	}
	if payout == nil {
		return payoutdomain.Response{}, payoutdomain.ErrPayoutNotFound
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, payout.CreatorID)
	if err != nil {
		return payoutdomain.Response{}, err
	}
	if creator == nil || creator.UserID != callerID {
		return payoutdomain.Response{}, payoutdomain.ErrPayoutNotFound
	}

	return toResponse(payout), nil
}

func (s *Service) ListByCreator(ctx context.Context, creatorID string, limit int) ([]payoutdomain.Response, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return nil, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(creatorID))
	if err != nil || id == 0 {
		return nil, payoutdomain.ErrInvalidPayout
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if creator == nil || creator.UserID != callerID {
		return nil, creatordomain.ErrCreatorNotFound
	}

	payouts, err := s.repo.ListByCreator(ctx, s.db, id, limit)
	if err != nil {
		return nil, err
	}

	out := make([]payoutdomain.Response, 0, len(payouts))
	for i := range payouts {
		out = append(out, toResponse(&payouts[i]))
	}
	return out, nil
}

func (s *Service) callerID(ctx context.Context) (snowflake.ID, error) {
	raw := usercontext.UserIDFromContext(ctx)
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, payoutdomain.ErrInvalidPayout
	}
	return id, nil
}

func toResponse(payout *payoutdomain.Payout) payoutdomain.Response {
	return payoutdomain.Response{
		ID:            payout.ID.String(),
		CreatorID:     payout.CreatorID.String(),
		Amount:        payout.Amount,
		EarningsCount: payout.EarningsCount,
		PeriodStart:   payout.PeriodStart,
		PeriodEnd:     payout.PeriodEnd,
		Status:        payout.Status,
		FailureReason: payout.FailureReason,
		PaidAt:        payout.PaidAt,
		CreatedAt:     payout.CreatedAt,
	}
}
