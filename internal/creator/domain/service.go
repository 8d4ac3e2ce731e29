package domain

import (
	"context"
	"errors"
	"time"

	"github.com/fanstack/fanstack/pkg/db/pagination"
)

type CreateProfileRequest struct {
	DisplayName       string            `json:"display_name"`
	Category          string            `json:"category"`
	Description       string            `json:"description"`
	SubscriptionPrice int64             `json:"subscription_price"`
	SocialLinks       map[string]string `json:"social_links,omitempty"`
	AcceptsTips       *bool             `json:"accepts_tips,omitempty"`
	AllowsMessages    *bool             `json:"allows_messages,omitempty"`
}

type UpdateProfileRequest struct {
	CreatorID         string  `json:"-"`
	DisplayName       *string `json:"display_name,omitempty"`
	Category          *string `json:"category,omitempty"`
	Description       *string `json:"description,omitempty"`
	SubscriptionPrice *int64  `json:"subscription_price,omitempty"`
	// SocialLinks replaces the stored map wholesale when present.
	SocialLinks    map[string]string `json:"social_links,omitempty"`
	AcceptsTips    *bool             `json:"accepts_tips,omitempty"`
	AllowsMessages *bool             `json:"allows_messages,omitempty"`
	IsActive       *bool             `json:"is_active,omitempty"`
}

type ListRequest struct {
	Category   string
	ActiveOnly bool
	PageToken  string
	PageSize   int
}

type ListResponse struct {
	Creators []Response           `json:"creators"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	DisplayName       string            `json:"display_name"`
	Category          string            `json:"category"`
	Description       string            `json:"description"`
	SubscriptionPrice int64             `json:"subscription_price"`
	SubscriberCount   int64             `json:"subscriber_count"`
	TotalPosts        int64             `json:"total_posts"`
	TotalEarnings     int64             `json:"total_earnings"`
	SocialLinks       map[string]string `json:"social_links,omitempty"`
	AcceptsTips       bool              `json:"accepts_tips"`
	AllowsMessages    bool              `json:"allows_messages"`
	IsActive          bool              `json:"is_active"`
	CreatedAt         time.Time         `json:"created_at"`
}

type Service interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest) (Response, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (Response, error)
	GetByID(ctx context.Context, id string) (Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidCreator     = errors.New("invalid_creator")
	ErrInvalidPrice       = errors.New("invalid_subscription_price")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrCreatorNotFound    = errors.New("creator_not_found")
	ErrDuplicateProfile   = errors.New("duplicate_creator_profile")
	ErrNotProfileOwner    = errors.New("not_profile_owner")
)
