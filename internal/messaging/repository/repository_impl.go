package repository

import (
	"context"
	"time"

	messagingdomain "github.com/fanstack/fanstack/internal/messaging/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const conversationColumns = `id, creator_id, subscriber_id, last_message_at, last_message_preview,
	 creator_last_read_at, subscriber_last_read_at, created_at, updated_at`

type repo struct{}

func Provide() messagingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertConversation(ctx context.Context, db *gorm.DB, conversation *messagingdomain.Conversation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO conversations (
			id, creator_id, subscriber_id, last_message_at, last_message_preview,
			creator_last_read_at, subscriber_last_read_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conversation.ID,
		conversation.CreatorID,
		conversation.SubscriberID,
		conversation.LastMessageAt,
		conversation.LastMessagePreview,
		conversation.CreatorLastReadAt,
		conversation.SubscriberLastReadAt,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	).Error
}

func (r *repo) FindConversationByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*messagingdomain.Conversation, error) {
	return r.findOne(ctx, db, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
}

func (r *repo) FindConversationByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*messagingdomain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, db, query, id)
}

func (r *repo) FindByParticipants(ctx context.Context, db *gorm.DB, creatorID, subscriberID snowflake.ID) (*messagingdomain.Conversation, error) {
	return r.findOne(ctx, db,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE creator_id = ? AND subscriber_id = ?`,
		creatorID,
		subscriberID,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*messagingdomain.Conversation, error) {
	var conversation messagingdomain.Conversation
	err := db.WithContext(ctx).Raw(query, args...).Scan(&conversation).Error
	if err != nil {
		return nil, err
	}
	if conversation.ID == 0 {
		return nil, nil
	}
	return &conversation, nil
}

func (r *repo) ListBySubscriber(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) ([]messagingdomain.Conversation, error) {
	return r.list(ctx, db, `subscriber_id`, subscriberID)
}

func (r *repo) ListByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID) ([]messagingdomain.Conversation, error) {
	return r.list(ctx, db, `creator_id`, creatorID)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, field string, id snowflake.ID) ([]messagingdomain.Conversation, error) {
	var conversations []messagingdomain.Conversation
	err := db.WithContext(ctx).Raw(
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE `+field+` = ?
		 ORDER BY last_message_at DESC, created_at DESC`,
		id,
	).Scan(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *repo) UpdateSummary(ctx context.Context, db *gorm.DB, conversation *messagingdomain.Conversation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE conversations
		 SET last_message_at = ?, last_message_preview = ?, updated_at = ?
		 WHERE id = ?`,
		conversation.LastMessageAt,
		conversation.LastMessagePreview,
		conversation.UpdatedAt,
		conversation.ID,
	).Error
}

func (r *repo) UpdateLastRead(ctx context.Context, db *gorm.DB, id snowflake.ID, creatorSide bool, at time.Time) error {
	field := `subscriber_last_read_at`
	if creatorSide {
		field = `creator_last_read_at`
	}
	return db.WithContext(ctx).Exec(
		`UPDATE conversations SET `+field+` = ?, updated_at = ? WHERE id = ?`,
		at,
		at,
		id,
	).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, message *messagingdomain.Message) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO messages (id, conversation_id, sender_id, message_type, body, tip_amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.MessageType,
		message.Body,
		message.TipAmount,
		message.CreatedAt,
	).Error
}

func (r *repo) ListMessages(ctx context.Context, db *gorm.DB, conversationID snowflake.ID, limit int) ([]messagingdomain.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var messages []messagingdomain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, conversation_id, sender_id, message_type, body, tip_amount, created_at
		 FROM messages
		 WHERE conversation_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		conversationID,
		limit,
	).Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, conversationID, readerID snowflake.ID, after *time.Time) (int64, error) {
	query := `SELECT COUNT(1) FROM messages WHERE conversation_id = ? AND sender_id <> ?`
	args := []any{conversationID, readerID}
	if after != nil {
		query += ` AND created_at > ?`
		args = append(args, *after)
	}

	var count int64
	err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
