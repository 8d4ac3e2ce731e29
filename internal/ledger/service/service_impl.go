package service

import (
	"context"
	"strings"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	"github.com/fanstack/fanstack/internal/observability/metrics"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	repo        ledgerdomain.Repository
	creatorRepo creatordomain.Repository
	platform    *config.PlatformConfigHolder
	metrics     *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        ledgerdomain.Repository
	CreatorRepo creatordomain.Repository
	Platform    *config.PlatformConfigHolder
	Metrics     *metrics.Metrics
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ledger.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		creatorRepo: p.CreatorRepo,
		platform:    p.Platform,
		metrics:     p.Metrics,
	}
}

// Record writes the earning, its transaction row and the creator's
// running total inside the caller's transaction. Replays of the same
// source ref return the stored earning without writing anything.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, in ledgerdomain.RecordEarningInput) (*ledgerdomain.Earning, error) {
	if in.CreatorID == 0 {
		return nil, ledgerdomain.ErrInvalidCreator
	}
	if in.GrossAmount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	sourceRef := strings.TrimSpace(in.SourceRef)
	if sourceRef == "" {
		return nil, ledgerdomain.ErrInvalidSourceRef
	}
	if in.SubscriptionID != nil && in.TipID != nil {
		return nil, ledgerdomain.ErrInvalidEarning
	}

	existing, err := s.repo.FindEarningBySourceRef(ctx, tx, sourceRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	fee, net := ledgerdomain.FeeSplit(in.GrossAmount, s.platform.Get().FeePercent)

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock.Now()
	}

	earning := ledgerdomain.Earning{
		ID:             s.genID.Generate(),
		CreatorID:      in.CreatorID,
		Type:           in.Type,
		GrossAmount:    in.GrossAmount,
		PlatformFee:    fee,
		NetAmount:      net,
		SubscriptionID: in.SubscriptionID,
		TipID:          in.TipID,
		SourceRef:      sourceRef,
		CreatedAt:      occurredAt,
	}

	if err := s.repo.InsertEarning(ctx, tx, &earning); err != nil {
		// concurrent replay raced us to the unique source_ref
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindEarningBySourceRef(ctx, tx, sourceRef)
		}
		return nil, err
	}

	transaction := ledgerdomain.Transaction{
		ID:             s.genID.Generate(),
		Type:           transactionTypeFor(in.Type),
		Amount:         in.GrossAmount,
		Status:         ledgerdomain.TransactionStatusCompleted,
		StripeRef:      sourceRef,
		SubscriptionID: in.SubscriptionID,
		TipID:          in.TipID,
		CreatedAt:      occurredAt,
	}
	if err := s.repo.InsertTransaction(ctx, tx, &transaction); err != nil {
		return nil, err
	}

	if err := s.creatorRepo.AddTotalEarnings(ctx, tx, in.CreatorID, net, occurredAt); err != nil {
		return nil, err
	}

	s.metrics.RecordLedgerEntry(string(in.Type))
	return &earning, nil
}

func (s *Service) SummaryByCreator(ctx context.Context, creatorID string) (ledgerdomain.SummaryResponse, error) {
	id, err := s.parseID(creatorID)
	if err != nil {
		return ledgerdomain.SummaryResponse{}, err
	}

	summary, err := s.repo.SummaryByCreator(ctx, s.db, id)
	if err != nil {
		return ledgerdomain.SummaryResponse{}, err
	}

	return ledgerdomain.SummaryResponse{
		CreatorID: id.String(),
		Summary:   *summary,
	}, nil
}

func (s *Service) ListByCreator(ctx context.Context, creatorID string, limit int) ([]ledgerdomain.EntryResponse, error) {
	id, err := s.parseID(creatorID)
	if err != nil {
		return nil, err
	}

	earnings, err := s.repo.ListEarningsByCreator(ctx, s.db, id, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]ledgerdomain.EntryResponse, 0, len(earnings))
	for _, earning := range earnings {
		entries = append(entries, toEntryResponse(earning))
	}
	return entries, nil
}

func toEntryResponse(e ledgerdomain.Earning) ledgerdomain.EntryResponse {
	entry := ledgerdomain.EntryResponse{
		ID:          e.ID.String(),
		CreatorID:   e.CreatorID.String(),
		Type:        e.Type,
		GrossAmount: e.GrossAmount,
		PlatformFee: e.PlatformFee,
		NetAmount:   e.NetAmount,
		SourceRef:   e.SourceRef,
		IsPaidOut:   e.IsPaidOut,
		PayoutDate:  e.PayoutDate,
		CreatedAt:   e.CreatedAt,
	}
	if e.SubscriptionID != nil {
		entry.SubscriptionID = e.SubscriptionID.String()
	}
	if e.TipID != nil {
		entry.TipID = e.TipID.String()
	}
	return entry
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, ledgerdomain.ErrInvalidCreator
	}
	return id, nil
}

func transactionTypeFor(earningType ledgerdomain.EarningType) ledgerdomain.TransactionType {
	if earningType == ledgerdomain.EarningTypeTip {
		return ledgerdomain.TransactionTypeTip
	}
	return ledgerdomain.TransactionTypeSubscription
}
