package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertConversation(ctx context.Context, db *gorm.DB, conversation *Conversation) error
	FindConversationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Conversation, error)
	FindConversationByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Conversation, error)
	FindByParticipants(ctx context.Context, db *gorm.DB, creatorID, subscriberID snowflake.ID) (*Conversation, error)
	ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) ([]Conversation, error)
	ListByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID) ([]Conversation, error)
	UpdateSummary(ctx context.Context, db *gorm.DB, conversation *Conversation) error
	UpdateLastRead(ctx context.Context, db *gorm.DB, id snowflake.ID, creatorSide bool, at time.Time) error

	InsertMessage(ctx context.Context, db *gorm.DB, message *Message) error
	ListMessages(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, limit int) ([]Message, error)
	// CountUnread counts messages not sent by the reader and created
	// after the reader's last-read mark. A nil mark counts everything.
	CountUnread(ctx context.Context, db *gorm.DB, conversationID, readerID snowflake.ID, after *time.Time) (int64, error)
}
