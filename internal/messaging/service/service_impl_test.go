package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	creatorrepo "github.com/fanstack/fanstack/internal/creator/repository"
	"github.com/fanstack/fanstack/internal/messaging/domain"
	messagingrepo "github.com/fanstack/fanstack/internal/messaging/repository"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNode = func() *snowflake.Node {
		node, err := snowflake.NewNode(8)
		if err != nil {
			panic(err)
		}
		return node
	}()
	dbSeq atomic.Int64
)

// stubSubscriptions answers access checks from a fixed set of
// subscriber/creator pairs.
type stubSubscriptions struct {
	active map[string]bool
}

func newStubSubscriptions() *stubSubscriptions {
	return &stubSubscriptions{active: map[string]bool{}}
}

func (s *stubSubscriptions) grant(subscriberID, creatorID string) {
	s.active[subscriberID+"|"+creatorID] = true
}

func (s *stubSubscriptions) revoke(subscriberID, creatorID string) {
	delete(s.active, subscriberID+"|"+creatorID)
}

func (s *stubSubscriptions) HasActiveSubscription(ctx context.Context, subscriberID, creatorID string) (bool, error) {
	return s.active[subscriberID+"|"+creatorID], nil
}

func (s *stubSubscriptions) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
}

func (s *stubSubscriptions) Cancel(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
}

func (s *stubSubscriptions) Reactivate(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrInvalidOperation
}

func (s *stubSubscriptions) GetByID(ctx context.Context, id string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, subscriptiondomain.ErrSubscriptionNotFound
}

func (s *stubSubscriptions) ListBySubscriber(ctx context.Context) ([]subscriptiondomain.Response, error) {
	return nil, nil
}

func (s *stubSubscriptions) History(ctx context.Context, id string) ([]subscriptiondomain.HistoryEntry, error) {
	return nil, nil
}

func (s *stubSubscriptions) MarkRenewed(ctx context.Context, event subscriptiondomain.RenewalEvent) error {
	return nil
}

func (s *stubSubscriptions) MarkPaymentFailed(ctx context.Context, event subscriptiondomain.PaymentFailureEvent) error {
	return nil
}

func (s *stubSubscriptions) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

type testEnv struct {
	db            *gorm.DB
	clk           *clock.FakeClock
	subscriptions *stubSubscriptions
	svc           domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:messaging_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&creatordomain.Creator{},
		&domain.Conversation{},
		&domain.Message{},
	))

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	subscriptions := newStubSubscriptions()
	svc := NewService(ServiceParam{
		DB:              db,
		Log:             zap.NewNop(),
		GenID:           testNode,
		Clock:           clk,
		Repo:            messagingrepo.Provide(),
		CreatorRepo:     creatorrepo.Provide(),
		Subscriptionsvc: subscriptions,
	})

	return &testEnv{db: db, clk: clk, subscriptions: subscriptions, svc: svc}
}

func (e *testEnv) seedCreator(t *testing.T, allowsMessages bool) *creatordomain.Creator {
	t.Helper()

	creator := creatordomain.Creator{
		ID:                testNode.Generate(),
		UserID:            testNode.Generate(),
		DisplayName:       "Creator",
		SubscriptionPrice: 999,
		AcceptsTips:       true,
		AllowsMessages:    allowsMessages,
		IsActive:          true,
		CreatedAt:         e.clk.Now(),
		UpdatedAt:         e.clk.Now(),
	}
	require.NoError(t, e.db.Create(&creator).Error)
	return &creator
}

// startThread grants the fan a subscription and opens the conversation.
func (e *testEnv) startThread(t *testing.T, creator *creatordomain.Creator, fan snowflake.ID) domain.ConversationResponse {
	t.Helper()

	e.subscriptions.grant(fan.String(), creator.ID.String())
	conversation, err := e.svc.StartConversation(e.asUser(fan), creator.ID.String())
	require.NoError(t, err)
	return conversation
}

func (e *testEnv) asUser(id snowflake.ID) context.Context {
	return usercontext.WithUserID(context.Background(), id.String())
}

func TestStartConversation(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()

	// no subscription, no thread
	_, err := env.svc.StartConversation(env.asUser(fan), creator.ID.String())
	assert.ErrorIs(t, err, domain.ErrSubscriptionRequired)

	env.subscriptions.grant(fan.String(), creator.ID.String())
	conversation, err := env.svc.StartConversation(env.asUser(fan), creator.ID.String())
	require.NoError(t, err)
	assert.Equal(t, creator.ID.String(), conversation.CreatorID)
	assert.Equal(t, fan.String(), conversation.SubscriberID)
	assert.Nil(t, conversation.LastMessageAt)

	// starting again lands on the same thread
	again, err := env.svc.StartConversation(env.asUser(fan), creator.ID.String())
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, again.ID)
}

func TestStartConversation_Rejections(t *testing.T) {
	env := newTestEnv(t)
	closed := env.seedCreator(t, false)
	open := env.seedCreator(t, true)
	fan := testNode.Generate()
	env.subscriptions.grant(fan.String(), closed.ID.String())

	_, err := env.svc.StartConversation(env.asUser(fan), closed.ID.String())
	assert.ErrorIs(t, err, domain.ErrMessagingDisabled)

	// creators do not message themselves
	_, err = env.svc.StartConversation(env.asUser(open.UserID), open.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidConversation)

	_, err = env.svc.StartConversation(env.asUser(fan), testNode.Generate().String())
	assert.ErrorIs(t, err, creatordomain.ErrCreatorNotFound)
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()
	conversation := env.startThread(t, creator, fan)

	_, err := env.svc.SendMessage(env.asUser(fan), conversation.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	sent, err := env.svc.SendMessage(env.asUser(fan), conversation.ID, "hi there")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeText, sent.MessageType)
	assert.Equal(t, fan.String(), sent.SenderID)

	// summary reflects the latest message
	threads, err := env.svc.ListConversations(env.asUser(fan))
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.NotNil(t, threads[0].LastMessageAt)
	assert.Equal(t, "hi there", threads[0].LastMessagePreview)

	// the creator replies without holding a subscription
	env.clk.Advance(time.Second)
	reply, err := env.svc.SendMessage(env.asUser(creator.UserID), conversation.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, creator.UserID.String(), reply.SenderID)

	messages, err := env.svc.ListMessages(env.asUser(fan), conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi there", messages[0].Body)
	assert.Equal(t, "hello", messages[1].Body)
}

func TestSendMessage_LapsedSubscription(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()
	conversation := env.startThread(t, creator, fan)

	env.subscriptions.revoke(fan.String(), creator.ID.String())

	_, err := env.svc.SendMessage(env.asUser(fan), conversation.ID, "still there?")
	assert.ErrorIs(t, err, domain.ErrSubscriptionRequired)

	// the creator side is unaffected
	_, err = env.svc.SendMessage(env.asUser(creator.UserID), conversation.ID, "come back")
	require.NoError(t, err)
}

func TestSendMessage_PreviewTruncated(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()
	conversation := env.startThread(t, creator, fan)

	long := strings.Repeat("x", 200)
	_, err := env.svc.SendMessage(env.asUser(fan), conversation.ID, long)
	require.NoError(t, err)

	threads, err := env.svc.ListConversations(env.asUser(fan))
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].LastMessagePreview, 80)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()
	conversation := env.startThread(t, creator, fan)

	_, err := env.svc.SendMessage(env.asUser(fan), conversation.ID, "one")
	require.NoError(t, err)
	env.clk.Advance(time.Second)
	_, err = env.svc.SendMessage(env.asUser(fan), conversation.ID, "two")
	require.NoError(t, err)

	unread, err := env.svc.UnreadCount(env.asUser(creator.UserID), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	// the sender has nothing unread
	unread, err = env.svc.UnreadCount(env.asUser(fan), conversation.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	env.clk.Advance(time.Second)
	require.NoError(t, env.svc.MarkRead(env.asUser(creator.UserID), conversation.ID))

	unread, err = env.svc.UnreadCount(env.asUser(creator.UserID), conversation.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// new messages count from the read marker forward
	env.clk.Advance(time.Second)
	_, err = env.svc.SendMessage(env.asUser(fan), conversation.ID, "three")
	require.NoError(t, err)

	unread, err = env.svc.UnreadCount(env.asUser(creator.UserID), conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestOutsiderLooksLikeMissingConversation(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()
	conversation := env.startThread(t, creator, fan)
	outsider := env.asUser(testNode.Generate())

	_, err := env.svc.SendMessage(outsider, conversation.ID, "let me in")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	_, err = env.svc.ListMessages(outsider, conversation.ID, 10)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	_, err = env.svc.UnreadCount(outsider, conversation.ID)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestNotifyTip(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t, true)
	fan := testNode.Generate()

	// no thread yet, the notification is silently dropped
	env.svc.NotifyTip(context.Background(), creator.ID, fan, 1000, "")
	var count int64
	require.NoError(t, env.db.Model(&domain.Message{}).Count(&count).Error)
	assert.Zero(t, count)

	conversation := env.startThread(t, creator, fan)
	env.svc.NotifyTip(context.Background(), creator.ID, fan, 1000, "")

	messages, err := env.svc.ListMessages(env.asUser(fan), conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.MessageTypeTip, messages[0].MessageType)
	assert.Equal(t, int64(1000), messages[0].TipAmount)
	assert.Equal(t, "sent a $10.00 tip", messages[0].Body)

	env.clk.Advance(time.Second)
	env.svc.NotifyTip(context.Background(), creator.ID, fan, 500, "thanks for the show")

	messages, err = env.svc.ListMessages(env.asUser(fan), conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "thanks for the show", messages[1].Body)
}
