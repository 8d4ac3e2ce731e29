package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/content/domain"
	contentrepo "github.com/fanstack/fanstack/internal/content/repository"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	creatorrepo "github.com/fanstack/fanstack/internal/creator/repository"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	"github.com/fanstack/fanstack/internal/usercontext"
	genericrepo "github.com/fanstack/fanstack/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testNode = func() *snowflake.Node {
		node, err := snowflake.NewNode(7)
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

	dsn := fmt.Sprintf("file:content_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&creatordomain.Creator{},
		&domain.Post{},
		&domain.Media{},
		&domain.PostLike{},
		&domain.Comment{},
	))

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	subscriptions := newStubSubscriptions()
	svc := NewService(ServiceParam{
		DB:              db,
		Log:             zap.NewNop(),
		GenID:           testNode,
		Clock:           clk,
		Repo:            contentrepo.Provide(),
		CreatorRepo:     creatorrepo.Provide(),
		Comments:        genericrepo.ProvideStore[domain.Comment](db),
		Subscriptionsvc: subscriptions,
	})

	return &testEnv{db: db, clk: clk, subscriptions: subscriptions, svc: svc}
}

func (e *testEnv) seedCreator(t *testing.T) *creatordomain.Creator {
	t.Helper()

	creator := creatordomain.Creator{
		ID:                testNode.Generate(),
		UserID:            testNode.Generate(),
		DisplayName:       "Creator",
		SubscriptionPrice: 999,
		AcceptsTips:       true,
		AllowsMessages:    true,
		IsActive:          true,
		CreatedAt:         e.clk.Now(),
		UpdatedAt:         e.clk.Now(),
	}
	require.NoError(t, e.db.Create(&creator).Error)
	return &creator
}

func (e *testEnv) asUser(id snowflake.ID) context.Context {
	return usercontext.WithUserID(context.Background(), id.String())
}

func (e *testEnv) createPost(t *testing.T, creator *creatordomain.Creator, visibility domain.Visibility) domain.PostResponse {
	t.Helper()

	post, err := e.svc.CreatePost(e.asUser(creator.UserID), domain.CreatePostRequest{
		Title:      "hello",
		Body:       "the full body",
		Visibility: visibility,
	})
	require.NoError(t, err)
	return post
}

func (e *testEnv) reloadCreator(t *testing.T, id snowflake.ID) *creatordomain.Creator {
	t.Helper()

	var creator creatordomain.Creator
	require.NoError(t, e.db.First(&creator, "id = ?", id).Error)
	return &creator
}

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)

	post, err := env.svc.CreatePost(env.asUser(creator.UserID), domain.CreatePostRequest{
		Title: "with media",
		Body:  "body",
		Media: []domain.MediaInput{
			{MediaType: domain.MediaTypeImage, URL: "https://cdn.example.com/a.jpg"},
			{MediaType: domain.MediaTypeVideo, URL: "https://cdn.example.com/b.mp4"},
		},
	})
	require.NoError(t, err)

	// gated is the default
	assert.Equal(t, domain.VisibilitySubscribers, post.Visibility)
	require.Len(t, post.Media, 2)
	assert.Equal(t, 0, post.Media[0].Position)
	assert.Equal(t, 1, post.Media[1].Position)

	assert.Equal(t, int64(1), env.reloadCreator(t, creator.ID).TotalPosts)
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	ctx := env.asUser(creator.UserID)

	_, err := env.svc.CreatePost(ctx, domain.CreatePostRequest{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidPost)

	_, err = env.svc.CreatePost(ctx, domain.CreatePostRequest{Title: "bad media", Media: []domain.MediaInput{
		{MediaType: "gif", URL: "https://cdn.example.com/a.gif"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidPost)

	// only creators publish
	_, err = env.svc.CreatePost(env.asUser(testNode.Generate()), domain.CreatePostRequest{Title: "nope"})
	assert.ErrorIs(t, err, creatordomain.ErrCreatorNotFound)
}

func TestGetPost_Gating(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	public := env.createPost(t, creator, domain.VisibilityPublic)
	gated := env.createPost(t, creator, domain.VisibilitySubscribers)

	stranger := testNode.Generate()
	subscriber := testNode.Generate()
	env.subscriptions.grant(subscriber.String(), creator.ID.String())

	got, err := env.svc.GetPost(env.asUser(stranger), public.ID)
	require.NoError(t, err)
	assert.Equal(t, "the full body", got.Body)

	_, err = env.svc.GetPost(env.asUser(stranger), gated.ID)
	assert.ErrorIs(t, err, domain.ErrContentLocked)

	got, err = env.svc.GetPost(env.asUser(subscriber), gated.ID)
	require.NoError(t, err)
	assert.Equal(t, "the full body", got.Body)

	// the owner always sees their own gated content
	got, err = env.svc.GetPost(env.asUser(creator.UserID), gated.ID)
	require.NoError(t, err)
	assert.Equal(t, "the full body", got.Body)
}

func TestListByCreator_LocksGatedPosts(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	env.createPost(t, creator, domain.VisibilityPublic)
	env.clk.Advance(time.Second)
	env.createPost(t, creator, domain.VisibilitySubscribers)

	posts, err := env.svc.ListByCreator(env.asUser(testNode.Generate()), creator.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	for _, post := range posts {
		switch post.Visibility {
		case domain.VisibilityPublic:
			assert.False(t, post.Locked)
			assert.NotEmpty(t, post.Body)
		case domain.VisibilitySubscribers:
			assert.True(t, post.Locked)
			assert.Empty(t, post.Body)
			assert.Empty(t, post.Media)
		}
	}
}

func TestUpdateAndDeletePost(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	post := env.createPost(t, creator, domain.VisibilitySubscribers)
	ctx := env.asUser(creator.UserID)

	newTitle := "renamed"
	public := domain.VisibilityPublic
	updated, err := env.svc.UpdatePost(ctx, post.ID, domain.UpdatePostRequest{
		Title:      &newTitle,
		Visibility: &public,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, domain.VisibilityPublic, updated.Visibility)

	_, err = env.svc.UpdatePost(env.asUser(testNode.Generate()), post.ID, domain.UpdatePostRequest{Title: &newTitle})
	assert.ErrorIs(t, err, domain.ErrNotPostOwner)

	require.NoError(t, env.svc.DeletePost(ctx, post.ID))
	assert.Equal(t, int64(0), env.reloadCreator(t, creator.ID).TotalPosts)

	_, err = env.svc.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestLikeAndUnlike(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	post := env.createPost(t, creator, domain.VisibilityPublic)
	fan := env.asUser(testNode.Generate())

	require.NoError(t, env.svc.Like(fan, post.ID))

	got, err := env.svc.GetPost(fan, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikeCount)

	// one like per user
	assert.ErrorIs(t, env.svc.Like(fan, post.ID), domain.ErrAlreadyLiked)
	got, err = env.svc.GetPost(fan, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikeCount)

	require.NoError(t, env.svc.Unlike(fan, post.ID))
	got, err = env.svc.GetPost(fan, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.LikeCount)

	// unliking again is a no-op and never drives the count negative
	require.NoError(t, env.svc.Unlike(fan, post.ID))
	got, err = env.svc.GetPost(fan, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.LikeCount)
}

func TestLike_GatedPostNeedsAccess(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	post := env.createPost(t, creator, domain.VisibilitySubscribers)

	err := env.svc.Like(env.asUser(testNode.Generate()), post.ID)
	assert.ErrorIs(t, err, domain.ErrContentLocked)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	creator := env.seedCreator(t)
	post := env.createPost(t, creator, domain.VisibilityPublic)
	fan := env.asUser(testNode.Generate())

	_, err := env.svc.AddComment(fan, post.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidComment)

	first, err := env.svc.AddComment(fan, post.ID, "first!")
	require.NoError(t, err)
	env.clk.Advance(time.Second)
	_, err = env.svc.AddComment(fan, post.ID, "second")
	require.NoError(t, err)

	got, err := env.svc.GetPost(fan, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CommentCount)

	comments, err := env.svc.ListComments(fan, post.ID, 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, "first!", comments[0].Body)
}
