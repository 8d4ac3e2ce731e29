package service

import (
	"context"
	"strings"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	gatewaydomain "github.com/fanstack/fanstack/internal/gateway/domain"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	platform    *config.PlatformConfigHolder
	repo        tipdomain.Repository
	creatorRepo creatordomain.Repository

	accountsvc accountdomain.Service
	ledgersvc  ledgerdomain.Service
	gateway    gatewaydomain.Gateway
	notifier   tipdomain.Notifier
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Platform    *config.PlatformConfigHolder
	Repo        tipdomain.Repository
	CreatorRepo creatordomain.Repository

	Accountsvc accountdomain.Service
	Ledgersvc  ledgerdomain.Service
	Gateway    gatewaydomain.Gateway
	Notifier   tipdomain.Notifier `optional:"true"`
}

func NewService(p ServiceParam) tipdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tip.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		platform:    p.Platform,
		repo:        p.Repo,
		creatorRepo: p.CreatorRepo,

		accountsvc: p.Accountsvc,
		ledgersvc:  p.Ledgersvc,
		gateway:    p.Gateway,
		notifier:   p.Notifier,
	}
}

// Create charges the tipper through the gateway, then stores the tip.
// The fee split is snapshotted here; later fee changes never touch it.
func (s *Service) Create(ctx context.Context, req tipdomain.CreateTipRequest) (tipdomain.Response, error) {
	subscriberID, err := s.callerID(ctx)
	if err != nil {
		return tipdomain.Response{}, err
	}

	creatorID, err := snowflake.ParseString(strings.TrimSpace(req.CreatorID))
	if err != nil || creatorID == 0 {
		return tipdomain.Response{}, tipdomain.ErrInvalidTip
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, creatorID)
	if err != nil {
		return tipdomain.Response{}, err
	}
	if creator == nil || !creator.IsActive {
		return tipdomain.Response{}, creatordomain.ErrCreatorNotFound
	}
	if !creator.AcceptsTips {
		return tipdomain.Response{}, tipdomain.ErrTipsNotAccepted
	}
	if creator.UserID == subscriberID {
		return tipdomain.Response{}, tipdomain.ErrInvalidOperation
	}

	platform := s.platform.Get()
	if req.Amount < platform.MinTipCents || req.Amount > platform.MaxTipCents {
		return tipdomain.Response{}, tipdomain.ErrInvalidAmount
	}

	fee, net := ledgerdomain.FeeSplit(req.Amount, platform.FeePercent)

	customerRef, err := s.accountsvc.EnsureCustomerRef(ctx, subscriberID.String())
	if err != nil {
		return tipdomain.Response{}, err
	}

	charge, err := s.gateway.CreateCharge(ctx, gatewaydomain.CreateChargeInput{
		ProviderCustomerID: customerRef,
		AmountCents:        req.Amount,
		Currency:           "usd",
		Description:        "tip for " + creator.DisplayName,
		IdempotencyKey:     uuid.NewString(),
		Metadata: map[string]string{
			"subscriber_id": subscriberID.String(),
			"creator_id":    creatorID.String(),
		},
	})
	if err != nil {
		return tipdomain.Response{}, err
	}

	now := s.clock.Now()
	providerRef := charge.ProviderChargeID
	tip := tipdomain.Tip{
		ID:                    s.genID.Generate(),
		SubscriberID:          subscriberID,
		CreatorID:             creatorID,
		Amount:                req.Amount,
		PlatformFee:           fee,
		CreatorAmount:         net,
		Message:               strings.TrimSpace(req.Message),
		Status:                tipdomain.TipStatusPending,
		StripePaymentIntentID: &providerRef,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	settled := charge.Status == gatewaydomain.StatusSucceeded
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &tip); err != nil {
			return err
		}
		if settled {
			return s.settle(ctx, tx, &tip)
		}
		return nil
	})
	if err != nil {
		s.log.Error("tip persist failed after gateway charge",
			zap.String("provider_charge_id", providerRef),
			zap.Error(err),
		)
		return tipdomain.Response{}, err
	}

	if settled {
		s.notify(ctx, &tip)
	}

	return toResponse(&tip), nil
}

// Complete settles a pending tip from a payment confirmation. A replay
// of the same confirmation finds the tip already completed and returns
// nil; the ledger's source ref dedupe backstops any race.
func (s *Service) Complete(ctx context.Context, providerRef string) error {
	tip, err := s.repo.FindByProviderRef(ctx, s.db, strings.TrimSpace(providerRef))
	if err != nil {
		return err
	}
	if tip == nil {
		return tipdomain.ErrTipNotFound
	}

	var settled *tipdomain.Tip
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, tip.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return tipdomain.ErrTipNotFound
		}

		switch locked.Status {
		case tipdomain.TipStatusCompleted:
			return nil
		case tipdomain.TipStatusFailed, tipdomain.TipStatusRefunded:
			return tipdomain.ErrInvalidOperation
		}

		if err := s.settle(ctx, tx, locked); err != nil {
			return err
		}
		settled = locked
		return nil
	})
	if err != nil {
		return err
	}

	if settled != nil {
		s.notify(ctx, settled)
	}
	return nil
}

func (s *Service) Fail(ctx context.Context, providerRef string) error {
	return s.transition(ctx, providerRef, tipdomain.TipStatusPending, tipdomain.TipStatusFailed)
}

// Refund flips a completed tip to refunded. The recorded earning is
// left in place; clawbacks are settled out of band.
func (s *Service) Refund(ctx context.Context, providerRef string) error {
	return s.transition(ctx, providerRef, tipdomain.TipStatusCompleted, tipdomain.TipStatusRefunded)
}

func (s *Service) GetByID(ctx context.Context, id string) (tipdomain.Response, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return tipdomain.Response{}, err
	}

	tipID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || tipID == 0 {
		return tipdomain.Response{}, tipdomain.ErrInvalidTip
	}

	tip, err := s.repo.FindByID(ctx, s.db, tipID)
	if err != nil {
		return tipdomain.Response{}, err
	}
	if tip == nil {
		return tipdomain.Response{}, tipdomain.ErrTipNotFound
	}

	if tip.SubscriberID != callerID {
		creator, err := s.creatorRepo.FindByID(ctx, s.db, tip.CreatorID)
		if err != nil {
			return tipdomain.Response{}, err
		}
		if creator == nil || creator.UserID != callerID {
			return tipdomain.Response{}, tipdomain.ErrTipNotFound
		}
	}

	return toResponse(tip), nil
}

func (s *Service) ListByCreator(ctx context.Context, creatorID string, limit int) ([]tipdomain.Response, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return nil, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(creatorID))
	if err != nil || id == 0 {
		return nil, tipdomain.ErrInvalidTip
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if creator == nil || creator.UserID != callerID {
		return nil, creatordomain.ErrCreatorNotFound
	}

	tips, err := s.repo.ListByCreator(ctx, s.db, id, limit)
	if err != nil {
		return nil, err
	}

	out := make([]tipdomain.Response, 0, len(tips))
	for i := range tips {
		out = append(out, toResponse(&tips[i]))
	}
	return out, nil
}

// settle marks the tip completed and records its earning inside the
// caller's transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, tip *tipdomain.Tip) error {
	tip.Status = tipdomain.TipStatusCompleted
	tip.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, tx, tip); err != nil {
		return err
	}

	tipID := tip.ID
	_, err := s.ledgersvc.Record(ctx, tx, ledgerdomain.RecordEarningInput{
		CreatorID:   tip.CreatorID,
		Type:        ledgerdomain.EarningTypeTip,
		GrossAmount: tip.Amount,
		TipID:       &tipID,
		SourceRef:   derefString(tip.StripePaymentIntentID),
		OccurredAt:  tip.UpdatedAt,
	})
	return err
}

func (s *Service) transition(ctx context.Context, providerRef string, from, to tipdomain.TipStatus) error {
	tip, err := s.repo.FindByProviderRef(ctx, s.db, strings.TrimSpace(providerRef))
	if err != nil {
		return err
	}
	if tip == nil {
		return tipdomain.ErrTipNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, tip.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return tipdomain.ErrTipNotFound
		}
		if locked.Status == to {
			return nil
		}
		if locked.Status != from {
			return tipdomain.ErrInvalidOperation
		}

		locked.Status = to
		locked.UpdatedAt = s.clock.Now()
		return s.repo.UpdateStatus(ctx, tx, locked)
	})
}

func (s *Service) notify(ctx context.Context, tip *tipdomain.Tip) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyTip(ctx, tip.CreatorID, tip.SubscriberID, tip.Amount, tip.Message)
}

func (s *Service) callerID(ctx context.Context) (snowflake.ID, error) {
	raw := usercontext.UserIDFromContext(ctx)
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, tipdomain.ErrInvalidTip
	}
	return id, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toResponse(tip *tipdomain.Tip) tipdomain.Response {
	return tipdomain.Response{
		ID:            tip.ID.String(),
		SubscriberID:  tip.SubscriberID.String(),
		CreatorID:     tip.CreatorID.String(),
		Amount:        tip.Amount,
		PlatformFee:   tip.PlatformFee,
		CreatorAmount: tip.CreatorAmount,
		Message:       tip.Message,
		Status:        tip.Status,
		CreatedAt:     tip.CreatedAt,
	}
}
