package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPost(ctx context.Context, db *gorm.DB, post *Post) error
	FindPostByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Post, error)
	FindPostByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Post, error)
	ListPostsByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]Post, error)
	UpdatePost(ctx context.Context, db *gorm.DB, post *Post) error
	DeletePost(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertMedia(ctx context.Context, db *gorm.DB, media *Media) error
	ListMediaByPost(ctx context.Context, db *gorm.DB, postID snowflake.ID) ([]Media, error)

	InsertLike(ctx context.Context, db *gorm.DB, like *PostLike) error
	// DeleteLike reports whether a row was actually removed.
	DeleteLike(ctx context.Context, db *gorm.DB, postID, userID snowflake.ID) (bool, error)
	// AdjustLikeCount applies a guarded delta: the stored count never
	// drops below zero.
	AdjustLikeCount(ctx context.Context, db *gorm.DB, postID snowflake.ID, delta int64, at time.Time) error

	// Comment rows live in the generic store; only the guarded counter
	// needs raw SQL.
	AdjustCommentCount(ctx context.Context, db *gorm.DB, postID snowflake.ID, delta int64, at time.Time) error
}
