// Package domain contains persistence models for creator profiles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Creator is the monetizable profile attached to a user account.
// subscriber_count, total_posts and total_earnings are denormalized
// counters maintained inside the transactions that change them.
type Creator struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	UserID            snowflake.ID      `gorm:"not null;uniqueIndex"`
	DisplayName       string            `gorm:"type:text;not null"`
	Category          string            `gorm:"type:text"`
	Description       string            `gorm:"type:text"`
	SubscriptionPrice int64             `gorm:"not null"`
	SubscriberCount   int64             `gorm:"not null;default:0"`
	TotalPosts        int64             `gorm:"not null;default:0"`
	TotalEarnings     int64             `gorm:"not null;default:0"`
	SocialLinks       datatypes.JSONMap `gorm:"type:json"`
	AcceptsTips       bool              `gorm:"not null;default:true"`
	AllowsMessages    bool              `gorm:"not null;default:true"`
	IsActive          bool              `gorm:"not null;default:true"`
	StripeAccountID   *string           `gorm:"type:text"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Creator) TableName() string { return "creators" }
