package service

import (
	"context"
	"strings"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/fanstack/fanstack/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     creatordomain.Repository
	platform *config.PlatformConfigHolder
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     creatordomain.Repository
	Platform *config.PlatformConfigHolder
}

func NewService(p ServiceParam) creatordomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("creator.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		platform: p.Platform,
	}
}

func (s *Service) CreateProfile(ctx context.Context, req creatordomain.CreateProfileRequest) (creatordomain.Response, error) {
	userID, err := s.callerID(ctx)
	if err != nil {
		return creatordomain.Response{}, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return creatordomain.Response{}, creatordomain.ErrInvalidDisplayName
	}

	if err := s.validatePrice(req.SubscriptionPrice); err != nil {
		return creatordomain.Response{}, err
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return creatordomain.Response{}, err
	}
	if existing != nil {
		return creatordomain.Response{}, creatordomain.ErrDuplicateProfile
	}

	now := s.clock.Now()
	creator := creatordomain.Creator{
		ID:                s.genID.Generate(),
		UserID:            userID,
		DisplayName:       displayName,
		Category:          strings.TrimSpace(req.Category),
		Description:       strings.TrimSpace(req.Description),
		SubscriptionPrice: req.SubscriptionPrice,
		SocialLinks:       toSocialLinks(req.SocialLinks),
		AcceptsTips:       true,
		AllowsMessages:    true,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.AcceptsTips != nil {
		creator.AcceptsTips = *req.AcceptsTips
	}
	if req.AllowsMessages != nil {
		creator.AllowsMessages = *req.AllowsMessages
	}

	if err := s.repo.Insert(ctx, s.db, &creator); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return creatordomain.Response{}, creatordomain.ErrDuplicateProfile
		}
		return creatordomain.Response{}, err
	}

	return toResponse(&creator), nil
}

// UpdateProfile changes profile fields. A subscription price change only
// affects future subscriptions; existing subscriptions keep their
// snapshot price.
func (s *Service) UpdateProfile(ctx context.Context, req creatordomain.UpdateProfileRequest) (creatordomain.Response, error) {
	userID, err := s.callerID(ctx)
	if err != nil {
		return creatordomain.Response{}, err
	}

	creatorID, err := s.parseID(req.CreatorID)
	if err != nil {
		return creatordomain.Response{}, err
	}

	var updated *creatordomain.Creator
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		creator, err := s.repo.FindByIDForUpdate(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		if creator == nil {
			return creatordomain.ErrCreatorNotFound
		}
		if creator.UserID != userID {
			return creatordomain.ErrNotProfileOwner
		}

		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if name == "" {
				return creatordomain.ErrInvalidDisplayName
			}
			creator.DisplayName = name
		}
		if req.Category != nil {
			creator.Category = strings.TrimSpace(*req.Category)
		}
		if req.Description != nil {
			creator.Description = strings.TrimSpace(*req.Description)
		}
		if req.SubscriptionPrice != nil {
			if err := s.validatePrice(*req.SubscriptionPrice); err != nil {
				return err
			}
			creator.SubscriptionPrice = *req.SubscriptionPrice
		}
		if req.SocialLinks != nil {
			creator.SocialLinks = toSocialLinks(req.SocialLinks)
		}
		if req.AcceptsTips != nil {
			creator.AcceptsTips = *req.AcceptsTips
		}
		if req.AllowsMessages != nil {
			creator.AllowsMessages = *req.AllowsMessages
		}
		if req.IsActive != nil {
			creator.IsActive = *req.IsActive
		}

		creator.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateProfile(ctx, tx, creator); err != nil {
			return err
		}

		updated = creator
		return nil
	})
	if err != nil {
		return creatordomain.Response{}, err
	}

	return toResponse(updated), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (creatordomain.Response, error) {
	creatorID, err := s.parseID(id)
	if err != nil {
		return creatordomain.Response{}, err
	}

	creator, err := s.repo.FindByID(ctx, s.db, creatorID)
	if err != nil {
		return creatordomain.Response{}, err
	}
	if creator == nil {
		return creatordomain.Response{}, creatordomain.ErrCreatorNotFound
	}

	return toResponse(creator), nil
}

func (s *Service) List(ctx context.Context, req creatordomain.ListRequest) (creatordomain.ListResponse, error) {
	page := pagination.Pagination{
		PageToken: strings.TrimSpace(req.PageToken),
		PageSize:  req.PageSize,
	}
	if page.PageSize <= 0 {
		page.PageSize = 20
	}

	creators, err := s.repo.List(ctx, s.db, strings.TrimSpace(req.Category), req.ActiveOnly, page)
	if err != nil {
		return creatordomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(creators, int32(page.PageSize), func(c *creatordomain.Creator) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(creators) > page.PageSize {
		creators = creators[:page.PageSize]
	}

	out := make([]creatordomain.Response, 0, len(creators))
	for _, creator := range creators {
		out = append(out, toResponse(creator))
	}
	return creatordomain.ListResponse{Creators: out, PageInfo: pageInfo}, nil
}

func (s *Service) validatePrice(price int64) error {
	cfg := s.platform.Get()
	if price < cfg.MinPriceCents || price > cfg.MaxPriceCents {
		return creatordomain.ErrInvalidPrice
	}
	return nil
}

func (s *Service) callerID(ctx context.Context) (snowflake.ID, error) {
	raw := usercontext.UserIDFromContext(ctx)
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, creatordomain.ErrInvalidCreator
	}
	return id, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, creatordomain.ErrInvalidCreator
	}
	return id, nil
}

func toSocialLinks(links map[string]string) datatypes.JSONMap {
	if len(links) == 0 {
		return nil
	}
	out := datatypes.JSONMap{}
	for platform, url := range links {
		platform = strings.TrimSpace(platform)
		url = strings.TrimSpace(url)
		if platform == "" || url == "" {
			continue
		}
		out[platform] = url
	}
	return out
}

func fromSocialLinks(links datatypes.JSONMap) map[string]string {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string]string, len(links))
	for platform, url := range links {
		if s, ok := url.(string); ok {
			out[platform] = s
		}
	}
	return out
}

func toResponse(creator *creatordomain.Creator) creatordomain.Response {
	return creatordomain.Response{
		ID:                creator.ID.String(),
		UserID:            creator.UserID.String(),
		DisplayName:       creator.DisplayName,
		Category:          creator.Category,
		Description:       creator.Description,
		SubscriptionPrice: creator.SubscriptionPrice,
		SubscriberCount:   creator.SubscriberCount,
		TotalPosts:        creator.TotalPosts,
		TotalEarnings:     creator.TotalEarnings,
		SocialLinks:       fromSocialLinks(creator.SocialLinks),
		AcceptsTips:       creator.AcceptsTips,
		AllowsMessages:    creator.AllowsMessages,
		IsActive:          creator.IsActive,
		CreatedAt:         creator.CreatedAt,
	}
}
