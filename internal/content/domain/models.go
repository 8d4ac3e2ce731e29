// Package domain contains persistence models for creator content.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Visibility string

const (
	VisibilityPublic      Visibility = "public"
	VisibilitySubscribers Visibility = "subscribers"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Post is a unit of creator content. like_count and comment_count are
// denormalized and maintained inside the transactions that change them.
type Post struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	CreatorID    snowflake.ID `gorm:"not null;index"`
	Title        string       `gorm:"type:text;not null"`
	Body         string       `gorm:"type:text"`
	Visibility   Visibility   `gorm:"type:varchar(16);not null"`
	LikeCount    int64        `gorm:"not null;default:0"`
	CommentCount int64        `gorm:"not null;default:0"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Post) TableName() string { return "posts" }

type Media struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	PostID    snowflake.ID `gorm:"not null;index"`
	MediaType MediaType    `gorm:"type:varchar(16);not null"`
	URL       string       `gorm:"type:text;not null"`
	Position  int          `gorm:"not null;default:0"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Media) TableName() string { return "media" }

// PostLike records one user's like. The composite unique index makes
// repeat likes a no-op at the database level.
type PostLike struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	PostID    snowflake.ID `gorm:"not null;uniqueIndex:idx_post_user"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:idx_post_user"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PostLike) TableName() string { return "post_likes" }

type Comment struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	PostID    snowflake.ID `gorm:"not null;index"`
	UserID    snowflake.ID `gorm:"not null;index"`
	Body      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Comment) TableName() string { return "comments" }
