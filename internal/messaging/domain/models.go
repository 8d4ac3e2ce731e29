// Package domain contains persistence models for direct messaging
// between creators and their subscribers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Conversation is the single thread between one creator and one
// subscriber. Summary fields are denormalized and updated in the same
// transaction as the message that changes them.
type Conversation struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	CreatorID            snowflake.ID `gorm:"not null;uniqueIndex:idx_creator_subscriber"`
	SubscriberID         snowflake.ID `gorm:"not null;uniqueIndex:idx_creator_subscriber"`
	LastMessageAt        *time.Time   `gorm:"index"`
	LastMessagePreview   string       `gorm:"type:text"`
	CreatorLastReadAt    *time.Time
	SubscriberLastReadAt *time.Time
	CreatedAt            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Conversation) TableName() string { return "conversations" }

type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeTip  MessageType = "tip"
)

type Message struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ConversationID snowflake.ID `gorm:"not null;index"`
	SenderID       snowflake.ID `gorm:"not null"`
	MessageType    MessageType  `gorm:"type:varchar(16);not null"`
	Body           string       `gorm:"type:text"`
	TipAmount      int64        `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "messages" }
