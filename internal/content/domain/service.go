package domain

import (
	"context"
	"errors"
	"time"
)

type MediaInput struct {
	MediaType MediaType `json:"media_type"`
	URL       string    `json:"url"`
}

type CreatePostRequest struct {
	Title      string       `json:"title"`
	Body       string       `json:"body"`
	Visibility Visibility   `json:"visibility"`
	Media      []MediaInput `json:"media"`
}

type UpdatePostRequest struct {
	Title      *string     `json:"title"`
	Body       *string     `json:"body"`
	Visibility *Visibility `json:"visibility"`
}

type MediaResponse struct {
	ID        string    `json:"id"`
	MediaType MediaType `json:"media_type"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
}

// PostResponse hides the body and media behind Locked for viewers
// without access to gated content.
type PostResponse struct {
	ID           string          `json:"id"`
	CreatorID    string          `json:"creator_id"`
	Title        string          `json:"title"`
	Body         string          `json:"body,omitempty"`
	Visibility   Visibility      `json:"visibility"`
	Locked       bool            `json:"locked"`
	LikeCount    int64           `json:"like_count"`
	CommentCount int64           `json:"comment_count"`
	Media        []MediaResponse `json:"media,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CommentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type Service interface {
	CreatePost(ctx context.Context, req CreatePostRequest) (PostResponse, error)
	UpdatePost(ctx context.Context, id string, req UpdatePostRequest) (PostResponse, error)
	DeletePost(ctx context.Context, id string) error
	// GetPost returns the full post for viewers with access and
	// ErrContentLocked otherwise.
	GetPost(ctx context.Context, id string) (PostResponse, error)
	// ListByCreator returns the creator's feed; gated posts the caller
	// cannot view come back locked with the body stripped.
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]PostResponse, error)

	Like(ctx context.Context, postID string) error
	Unlike(ctx context.Context, postID string) error

	AddComment(ctx context.Context, postID, body string) (CommentResponse, error)
	ListComments(ctx context.Context, postID string, limit int) ([]CommentResponse, error)
}

var (
	ErrInvalidPost    = errors.New("invalid_post")
	ErrPostNotFound   = errors.New("post_not_found")
	ErrNotPostOwner   = errors.New("not_post_owner")
	ErrContentLocked  = errors.New("content_locked")
	ErrAlreadyLiked   = errors.New("already_liked")
	ErrInvalidComment = errors.New("invalid_comment")
)
