package service

import (
	"context"
	"strings"

	"github.com/fanstack/fanstack/internal/clock"
	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/fanstack/fanstack/pkg/db/option"
	"github.com/fanstack/fanstack/pkg/repository"
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
	repo        contentdomain.Repository
	creatorRepo creatordomain.Repository
	comments    repository.Repository[contentdomain.Comment]

	subscriptionsvc subscriptiondomain.Service
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        contentdomain.Repository
	CreatorRepo creatordomain.Repository
	Comments    repository.Repository[contentdomain.Comment]

	Subscriptionsvc subscriptiondomain.Service
}

func NewService(p ServiceParam) contentdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("content.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		creatorRepo: p.CreatorRepo,
		comments:    p.Comments,

		subscriptionsvc: p.Subscriptionsvc,
	}
}

func (s *Service) CreatePost(ctx context.Context, req contentdomain.CreatePostRequest) (contentdomain.PostResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}

	creator, err := s.creatorRepo.FindByUserID(ctx, s.db, callerID)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}
	if creator == nil {
		return contentdomain.PostResponse{}, creatordomain.ErrCreatorNotFound
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return contentdomain.PostResponse{}, contentdomain.ErrInvalidPost
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = contentdomain.VisibilitySubscribers
	}
	if visibility != contentdomain.VisibilityPublic && visibility != contentdomain.VisibilitySubscribers {
		return contentdomain.PostResponse{}, contentdomain.ErrInvalidPost
	}

	now := s.clock.Now()
	post := contentdomain.Post{
		ID:         s.genID.Generate(),
		CreatorID:  creator.ID,
		Title:      title,
		Body:       req.Body,
		Visibility: visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	media := make([]contentdomain.Media, 0, len(req.Media))
	for i, item := range req.Media {
		if item.MediaType != contentdomain.MediaTypeImage && item.MediaType != contentdomain.MediaTypeVideo {
			return contentdomain.PostResponse{}, contentdomain.ErrInvalidPost
		}
		if strings.TrimSpace(item.URL) == "" {
			return contentdomain.PostResponse{}, contentdomain.ErrInvalidPost
		}
		media = append(media, contentdomain.Media{
			ID:        s.genID.Generate(),
			PostID:    post.ID,
			MediaType: item.MediaType,
			URL:       item.URL,
			Position:  i,
			CreatedAt: now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertPost(ctx, tx, &post); err != nil {
			return err
		}
		for i := range media {
			if err := s.repo.InsertMedia(ctx, tx, &media[i]); err != nil {
				return err
			}
		}
		return s.creatorRepo.AdjustTotalPosts(ctx, tx, creator.ID, 1, now)
	})
	if err != nil {
		return contentdomain.PostResponse{}, err
	}

	return s.toResponse(&post, media, false), nil
}

func (s *Service) UpdatePost(ctx context.Context, id string, req contentdomain.UpdatePostRequest) (contentdomain.PostResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}

	postID, err := s.parsePostID(id)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}

	var updated *contentdomain.Post
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindPostByIDForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if locked == nil {
			return contentdomain.ErrPostNotFound
		}

		creator, err := s.creatorRepo.FindByID(ctx, tx, locked.CreatorID)
		if err != nil {
			return err
		}
		if creator == nil || creator.UserID != callerID {
			return contentdomain.ErrNotPostOwner
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return contentdomain.ErrInvalidPost
			}
			locked.Title = title
		}
		if req.Body != nil {
			locked.Body = *req.Body
		}
		if req.Visibility != nil {
			if *req.Visibility != contentdomain.VisibilityPublic && *req.Visibility != contentdomain.VisibilitySubscribers {
				return contentdomain.ErrInvalidPost
			}
			locked.Visibility = *req.Visibility
		}

		locked.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdatePost(ctx, tx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return contentdomain.PostResponse{}, err
	}

	media, err := s.repo.ListMediaByPost(ctx, s.db, updated.ID)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}
	return s.toResponse(updated, media, false), nil
}

func (s *Service) DeletePost(ctx context.Context, id string) error {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return err
	}

	postID, err := s.parsePostID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindPostByIDForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if locked == nil {
			return contentdomain.ErrPostNotFound
		}

		creator, err := s.creatorRepo.FindByID(ctx, tx, locked.CreatorID)
		if err != nil {
			return err
		}
		if creator == nil || creator.UserID != callerID {
			return contentdomain.ErrNotPostOwner
		}

		if err := s.repo.DeletePost(ctx, tx, locked.ID); err != nil {
			return err
		}
		return s.creatorRepo.AdjustTotalPosts(ctx, tx, creator.ID, -1, s.clock.Now())
	})
}

func (s *Service) GetPost(ctx context.Context, id string) (contentdomain.PostResponse, error) {
	postID, err := s.parsePostID(id)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}

	post, err := s.repo.FindPostByID(ctx, s.db, postID)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}
	if post == nil {
		return contentdomain.PostResponse{}, contentdomain.ErrPostNotFound
	}

	viewable, err := s.canView(ctx, post)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}
	if !viewable {
		return contentdomain.PostResponse{}, contentdomain.ErrContentLocked
	}

	media, err := s.repo.ListMediaByPost(ctx, s.db, post.ID)
	if err != nil {
		return contentdomain.PostResponse{}, err
	}
	return s.toResponse(post, media, false), nil
}

func (s *Service) ListByCreator(ctx context.Context, creatorID string, limit int) ([]contentdomain.PostResponse, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(creatorID))
	if err != nil || id == 0 {
		return nil, contentdomain.ErrInvalidPost
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, creatordomain.ErrCreatorNotFound
	}

	posts, err := s.repo.ListPostsByCreator(ctx, s.db, id, limit)
	if err != nil {
		return nil, err
	}

	subscribed, err := s.hasAccess(ctx, creator)
	if err != nil {
		return nil, err
	}

	out := make([]contentdomain.PostResponse, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		locked := post.Visibility == contentdomain.VisibilitySubscribers && !subscribed
		var media []contentdomain.Media
		if !locked {
			media, err = s.repo.ListMediaByPost(ctx, s.db, post.ID)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, s.toResponse(post, media, locked))
	}
	return out, nil
}

func (s *Service) Like(ctx context.Context, postID string) error {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return err
	}

	post, err := s.viewablePost(ctx, postID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertLike(ctx, tx, &contentdomain.PostLike{
			ID:        s.genID.Generate(),
			PostID:    post.ID,
			UserID:    callerID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.repo.AdjustLikeCount(ctx, tx, post.ID, 1, now)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return contentdomain.ErrAlreadyLiked
		}
		return err
	}
	return nil
}

func (s *Service) Unlike(ctx context.Context, postID string) error {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return err
	}

	id, err := s.parsePostID(postID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err := s.repo.DeleteLike(ctx, tx, id, callerID)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		return s.repo.AdjustLikeCount(ctx, tx, id, -1, now)
	})
}

func (s *Service) AddComment(ctx context.Context, postID, body string) (contentdomain.CommentResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return contentdomain.CommentResponse{}, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return contentdomain.CommentResponse{}, contentdomain.ErrInvalidComment
	}

	post, err := s.viewablePost(ctx, postID)
	if err != nil {
		return contentdomain.CommentResponse{}, err
	}

	now := s.clock.Now()
	comment := contentdomain.Comment{
		ID:        s.genID.Generate(),
		PostID:    post.ID,
		UserID:    callerID,
		Body:      body,
		CreatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.comments.WithTrx(tx).Create(ctx, &comment); err != nil {
			return err
		}
		return s.repo.AdjustCommentCount(ctx, tx, post.ID, 1, now)
	})
	if err != nil {
		return contentdomain.CommentResponse{}, err
	}

	return contentdomain.CommentResponse{
		ID:        comment.ID.String(),
		UserID:    comment.UserID.String(),
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}, nil
}

func (s *Service) ListComments(ctx context.Context, postID string, limit int) ([]contentdomain.CommentResponse, error) {
	post, err := s.viewablePost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 100
	}
	comments, err := s.comments.Find(ctx, &contentdomain.Comment{PostID: post.ID},
		option.WithSortBy("created_at asc, id asc"),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	out := make([]contentdomain.CommentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, contentdomain.CommentResponse{
			ID:        comment.ID.String(),
			UserID:    comment.UserID.String(),
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) viewablePost(ctx context.Context, id string) (*contentdomain.Post, error) {
	postID, err := s.parsePostID(id)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.FindPostByID(ctx, s.db, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, contentdomain.ErrPostNotFound
	}

	viewable, err := s.canView(ctx, post)
	if err != nil {
		return nil, err
	}
	if !viewable {
		return nil, contentdomain.ErrContentLocked
	}
	return post, nil
}

// canView gates subscriber-only content: public posts are open, the
// owning creator always sees their own posts, everyone else needs an
// accessible subscription.
func (s *Service) canView(ctx context.Context, post *contentdomain.Post) (bool, error) {
	if post.Visibility == contentdomain.VisibilityPublic {
		return true, nil
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, post.CreatorID)
	if err != nil {
		return false, err
	}
	if creator == nil {
		return false, nil
	}
	return s.hasAccess(ctx, creator)
}

func (s *Service) hasAccess(ctx context.Context, creator *creatordomain.Creator) (bool, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return false, nil
	}
	if creator.UserID == callerID {
		return true, nil
	}
	return s.subscriptionsvc.HasActiveSubscription(ctx, callerID.String(), creator.ID.String())
}

func (s *Service) callerID(ctx context.Context) (snowflake.ID, error) {
	raw := usercontext.UserIDFromContext(ctx)
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, contentdomain.ErrInvalidPost
	}
	return id, nil
}

func (s *Service) parsePostID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, contentdomain.ErrInvalidPost
	}
	return parsed, nil
}

func (s *Service) toResponse(post *contentdomain.Post, media []contentdomain.Media, locked bool) contentdomain.PostResponse {
	resp := contentdomain.PostResponse{
		ID:           post.ID.String(),
		CreatorID:    post.CreatorID.String(),
		Title:        post.Title,
		Visibility:   post.Visibility,
		Locked:       locked,
		LikeCount:    post.LikeCount,
		CommentCount: post.CommentCount,
		CreatedAt:    post.CreatedAt,
	}
	if locked {
		return resp
	}

	resp.Body = post.Body
	for _, item := range media {
		resp.Media = append(resp.Media, contentdomain.MediaResponse{
			ID:        item.ID.String(),
			MediaType: item.MediaType,
			URL:       item.URL,
			Position:  item.Position,
		})
	}
	return resp
}
