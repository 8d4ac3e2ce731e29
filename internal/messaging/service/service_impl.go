package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanstack/fanstack/internal/clock"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	messagingdomain "github.com/fanstack/fanstack/internal/messaging/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/fanstack/fanstack/pkg/db"
	"github.com/fanstack/fanstack/pkg/log"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const previewLimit = 80

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	repo        messagingdomain.Repository
	creatorRepo creatordomain.Repository

	subscriptionsvc subscriptiondomain.Service
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        messagingdomain.Repository
	CreatorRepo creatordomain.Repository

	Subscriptionsvc subscriptiondomain.Service
}

func NewService(p ServiceParam) messagingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("messaging.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		creatorRepo: p.CreatorRepo,

		subscriptionsvc: p.Subscriptionsvc,
	}
}

func (s *Service) StartConversation(ctx context.Context, creatorID string) (messagingdomain.ConversationResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return messagingdomain.ConversationResponse{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(creatorID))
	if err != nil || id == 0 {
		return messagingdomain.ConversationResponse{}, messagingdomain.ErrInvalidConversation
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return messagingdomain.ConversationResponse{}, err
	}
	if creator == nil || !creator.IsActive {
		return messagingdomain.ConversationResponse{}, creatordomain.ErrCreatorNotFound
	}
	if !creator.AllowsMessages {
		return messagingdomain.ConversationResponse{}, messagingdomain.ErrMessagingDisabled
	}
	if creator.UserID == callerID {
		return messagingdomain.ConversationResponse{}, messagingdomain.ErrInvalidConversation
	}

	subscribed, err := s.subscriptionsvc.HasActiveSubscription(ctx, callerID.String(), creator.ID.String())
	if err != nil {
		return messagingdomain.ConversationResponse{}, err
	}
	if !subscribed {
		return messagingdomain.ConversationResponse{}, messagingdomain.ErrSubscriptionRequired
	}

	existing, err := s.repo.FindByParticipants(ctx, s.db, creator.ID, callerID)
	if err != nil {
		return messagingdomain.ConversationResponse{}, err
	}
	if existing != nil {
		return s.toConversationResponse(ctx, existing, callerID)
	}

	now := s.clock.Now()
	conversation := messagingdomain.Conversation{
		ID:           s.genID.Generate(),
		CreatorID:    creator.ID,
		SubscriberID: callerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertConversation(ctx, s.db, &conversation); err != nil {
		// two racing starts converge on the first row
		if db.IsDuplicateKeyErr(err) {
			existing, ferr := s.repo.FindByParticipants(ctx, s.db, creator.ID, callerID)
			if ferr != nil {
				return messagingdomain.ConversationResponse{}, ferr
			}
			if existing != nil {
				return s.toConversationResponse(ctx, existing, callerID)
			}
		}
		return messagingdomain.ConversationResponse{}, err
	}

	return s.toConversationResponse(ctx, &conversation, callerID)
}

func (s *Service) SendMessage(ctx context.Context, conversationID, body string) (messagingdomain.MessageResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return messagingdomain.MessageResponse{}, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return messagingdomain.MessageResponse{}, messagingdomain.ErrInvalidMessage
	}

	conversation, creatorSide, err := s.findParticipating(ctx, conversationID, callerID)
	if err != nil {
		return messagingdomain.MessageResponse{}, err
	}

	if !creatorSide {
		subscribed, err := s.subscriptionsvc.HasActiveSubscription(ctx, callerID.String(), conversation.CreatorID.String())
		if err != nil {
			return messagingdomain.MessageResponse{}, err
		}
		if !subscribed {
			return messagingdomain.MessageResponse{}, messagingdomain.ErrSubscriptionRequired
		}
	}

	message, err := s.appendMessage(ctx, conversation.ID, callerID, messagingdomain.MessageTypeText, body, 0)
	if err != nil {
		return messagingdomain.MessageResponse{}, err
	}
	return toMessageResponse(message), nil
}

func (s *Service) ListConversations(ctx context.Context) ([]messagingdomain.ConversationResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return nil, err
	}

	conversations, err := s.repo.ListBySubscriber(ctx, s.db, callerID)
	if err != nil {
		return nil, err
	}

	creator, err := s.creatorRepo.FindByUserID(ctx, s.db, callerID)
	if err != nil {
		return nil, err
	}
	if creator != nil {
		owned, err := s.repo.ListByCreator(ctx, s.db, creator.ID)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, owned...)
	}

	out := make([]messagingdomain.ConversationResponse, 0, len(conversations))
	for i := range conversations {
		resp, err := s.toConversationResponse(ctx, &conversations[i], callerID)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID string, limit int) ([]messagingdomain.MessageResponse, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return nil, err
	}

	conversation, _, err := s.findParticipating(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, s.db, conversation.ID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]messagingdomain.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	return out, nil
}

func (s *Service) MarkRead(ctx context.Context, conversationID string) error {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return err
	}

	conversation, creatorSide, err := s.findParticipating(ctx, conversationID, callerID)
	if err != nil {
		return err
	}

	return s.repo.UpdateLastRead(ctx, s.db, conversation.ID, creatorSide, s.clock.Now())
}

func (s *Service) UnreadCount(ctx context.Context, conversationID string) (int64, error) {
	callerID, err := s.callerID(ctx)
	if err != nil {
		return 0, err
	}

	conversation, creatorSide, err := s.findParticipating(ctx, conversationID, callerID)
	if err != nil {
		return 0, err
	}

	lastRead := conversation.SubscriberLastReadAt
	if creatorSide {
		lastRead = conversation.CreatorLastReadAt
	}
	return s.repo.CountUnread(ctx, s.db, conversation.ID, callerID, lastRead)
}

// NotifyTip is called by the tip service after a tip settles. A missing
// thread or a write failure is logged and swallowed; the tip itself has
// already committed.
func (s *Service) NotifyTip(ctx context.Context, creatorID, subscriberID snowflake.ID, amount int64, message string) {
	conversation, err := s.repo.FindByParticipants(ctx, s.db, creatorID, subscriberID)
	if err != nil || conversation == nil {
		if err != nil {
			log.L(ctx).Warn("tip notification lookup failed", zap.Error(err))
		}
		return
	}

	body := message
	if body == "" {
		body = fmt.Sprintf("sent a $%d.%02d tip", amount/100, amount%100)
	}

	if _, err := s.appendMessage(ctx, conversation.ID, subscriberID, messagingdomain.MessageTypeTip, body, amount); err != nil {
		log.L(ctx).Warn("tip notification write failed",
			zap.String("conversation_id", conversation.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) appendMessage(ctx context.Context, conversationID, senderID snowflake.ID, messageType messagingdomain.MessageType, body string, tipAmount int64) (*messagingdomain.Message, error) {
	now := s.clock.Now()
	message := messagingdomain.Message{
		ID:             s.genID.Generate(),
		ConversationID: conversationID,
		SenderID:       senderID,
		MessageType:    messageType,
		Body:           body,
		TipAmount:      tipAmount,
		CreatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindConversationByIDForUpdate(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if locked == nil {
			return messagingdomain.ErrConversationNotFound
		}

		if err := s.repo.InsertMessage(ctx, tx, &message); err != nil {
			return err
		}

		locked.LastMessageAt = &now
		locked.LastMessagePreview = preview(body)
		locked.UpdatedAt = now
		return s.repo.UpdateSummary(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// findParticipating resolves the conversation and which side the caller
// sits on. Outsiders get not-found, never forbidden.
func (s *Service) findParticipating(ctx context.Context, id string, callerID snowflake.ID) (*messagingdomain.Conversation, bool, error) {
	conversationID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || conversationID == 0 {
		return nil, false, messagingdomain.ErrInvalidConversation
	}

	conversation, err := s.repo.FindConversationByID(ctx, s.db, conversationID)
	if err != nil {
		return nil, false, err
	}
	if conversation == nil {
		return nil, false, messagingdomain.ErrConversationNotFound
	}

	if conversation.SubscriberID == callerID {
		return conversation, false, nil
	}

	creator, err := s.creatorRepo.FindByID(ctx, s.db, conversation.CreatorID)
	if err != nil {
		return nil, false, err
	}
	if creator != nil && creator.UserID == callerID {
		return conversation, true, nil
	}

	return nil, false, messagingdomain.ErrConversationNotFound
}

func (s *Service) toConversationResponse(ctx context.Context, conversation *messagingdomain.Conversation, callerID snowflake.ID) (messagingdomain.ConversationResponse, error) {
	lastRead := conversation.SubscriberLastReadAt
	if conversation.SubscriberID != callerID {
		lastRead = conversation.CreatorLastReadAt
	}

	unread, err := s.repo.CountUnread(ctx, s.db, conversation.ID, callerID, lastRead)
	if err != nil {
		return messagingdomain.ConversationResponse{}, err
	}

	return messagingdomain.ConversationResponse{
		ID:                 conversation.ID.String(),
		CreatorID:          conversation.CreatorID.String(),
		SubscriberID:       conversation.SubscriberID.String(),
		LastMessageAt:      conversation.LastMessageAt,
		LastMessagePreview: conversation.LastMessagePreview,
		UnreadCount:        unread,
		CreatedAt:          conversation.CreatedAt,
	}, nil
}

func (s *Service) callerID(ctx context.Context) (snowflake.ID, error) {
	raw := usercontext.UserIDFromContext(ctx)
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, messagingdomain.ErrInvalidConversation
	}
	return id, nil
}

func preview(body string) string {
	if len(body) <= previewLimit {
		return body
	}
	return body[:previewLimit]
}

func toMessageResponse(message *messagingdomain.Message) messagingdomain.MessageResponse {
	return messagingdomain.MessageResponse{
		ID:          message.ID.String(),
		SenderID:    message.SenderID.String(),
		MessageType: message.MessageType,
		Body:        message.Body,
		TipAmount:   message.TipAmount,
		CreatedAt:   message.CreatedAt,
	}
}
