package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ConversationResponse struct {
	ID                 string     `json:"id"`
	CreatorID          string     `json:"creator_id"`
	SubscriberID       string     `json:"subscriber_id"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	UnreadCount        int64      `json:"unread_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

type MessageResponse struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"sender_id"`
	MessageType MessageType `json:"message_type"`
	Body        string      `json:"body,omitempty"`
	TipAmount   int64       `json:"tip_amount,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Service interface {
	// StartConversation opens (or returns) the thread between the
	// calling subscriber and the creator.
	StartConversation(ctx context.Context, creatorID string) (ConversationResponse, error)
	// SendMessage appends a message and refreshes the conversation
	// summary in one transaction.
	SendMessage(ctx context.Context, conversationID, body string) (MessageResponse, error)
	ListConversations(ctx context.Context) ([]ConversationResponse, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]MessageResponse, error)
	MarkRead(ctx context.Context, conversationID string) error
	UnreadCount(ctx context.Context, conversationID string) (int64, error)

	// NotifyTip drops a tip marker into an existing thread after a tip
	// settles. Best effort; absence of a thread is not an error.
	NotifyTip(ctx context.Context, creatorID, subscriberID snowflake.ID, amount int64, message string)
}

var (
	ErrInvalidConversation  = errors.New("invalid_conversation")
	ErrConversationNotFound = errors.New("conversation_not_found")
	ErrInvalidMessage       = errors.New("invalid_message")
	ErrMessagingDisabled    = errors.New("messaging_disabled")
	ErrSubscriptionRequired = errors.New("subscription_required")
)
