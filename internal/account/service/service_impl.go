package service

import (
	"context"
	"strings"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	"github.com/fanstack/fanstack/internal/clock"
	gatewaydomain "github.com/fanstack/fanstack/internal/gateway/domain"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    accountdomain.Repository
	gateway gatewaydomain.Gateway
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    accountdomain.Repository
	Gateway gatewaydomain.Gateway
}

func NewService(p ServiceParam) accountdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("account.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
	}
}

func (s *Service) Register(ctx context.Context, req accountdomain.RegisterRequest) (accountdomain.Response, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return accountdomain.Response{}, accountdomain.ErrInvalidEmail
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		return accountdomain.Response{}, accountdomain.ErrInvalidUserName
	}

	accountType, err := parseAccountType(req.AccountType)
	if err != nil {
		return accountdomain.Response{}, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = userName
	}

	now := s.clock.Now()
	user := accountdomain.User{
		ID:          s.genID.Generate(),
		Email:       email,
		UserName:    userName,
		DisplayName: displayName,
		AccountType: accountType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return accountdomain.Response{}, accountdomain.ErrDuplicateAccount
		}
		return accountdomain.Response{}, err
	}

	return toResponse(&user), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (accountdomain.Response, error) {
	userID, err := s.parseID(id)
	if err != nil {
		return accountdomain.Response{}, err
	}

	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return accountdomain.Response{}, err
	}
	if user == nil {
		return accountdomain.Response{}, accountdomain.ErrUserNotFound
	}

	return toResponse(user), nil
}

func (s *Service) EnsureCustomerRef(ctx context.Context, id string) (string, error) {
	userID, err := s.parseID(id)
	if err != nil {
		return "", err
	}

	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", accountdomain.ErrUserNotFound
	}

	existing := ""
	if user.StripeCustomerID != nil {
		existing = strings.TrimSpace(*user.StripeCustomerID)
	}

	customer, err := s.gateway.EnsureCustomer(ctx, gatewaydomain.EnsureCustomerInput{
		AccountID:          user.ID.String(),
		Email:              user.Email,
		DisplayName:        user.DisplayName,
		ExistingCustomerID: existing,
	})
	if err != nil {
		return "", err
	}

	if customer.ProviderCustomerID != existing {
		if err := s.repo.UpdateCustomerRef(ctx, s.db, user.ID, customer.ProviderCustomerID); err != nil {
			return "", err
		}
	}

	return customer.ProviderCustomerID, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, accountdomain.ErrInvalidUser
	}
	return id, nil
}

func parseAccountType(value string) (accountdomain.AccountType, error) {
	switch accountdomain.AccountType(strings.ToLower(strings.TrimSpace(value))) {
	case accountdomain.AccountTypeCreator:
		return accountdomain.AccountTypeCreator, nil
	case accountdomain.AccountTypeSubscriber:
		return accountdomain.AccountTypeSubscriber, nil
	default:
		return "", accountdomain.ErrInvalidAccountType
	}
}

func toResponse(user *accountdomain.User) accountdomain.Response {
	return accountdomain.Response{
		ID:          user.ID.String(),
		Email:       user.Email,
		UserName:    user.UserName,
		DisplayName: user.DisplayName,
		AccountType: user.AccountType,
		CreatedAt:   user.CreatedAt,
	}
}
