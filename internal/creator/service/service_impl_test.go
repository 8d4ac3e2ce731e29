package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fanstack/fanstack/internal/clock"
	"github.com/fanstack/fanstack/internal/config"
	"github.com/fanstack/fanstack/internal/creator/domain"
	"github.com/fanstack/fanstack/internal/creator/repository"
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
		node, err := snowflake.NewNode(6)
		if err != nil {
			panic(err)
		}
		return node
	}()
	dbSeq atomic.Int64
)

func newTestService(t *testing.T) (*gorm.DB, *clock.FakeClock, domain.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:creator_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Creator{}))

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    testNode,
		Clock:    clk,
		Repo:     repository.Provide(),
		Platform: config.NewStaticPlatformConfigHolder(config.DefaultPlatformConfig()),
	})
	return db, clk, svc
}

func asUser(id snowflake.ID) context.Context {
	return usercontext.WithUserID(context.Background(), id.String())
}

func TestCreateProfile(t *testing.T) {
	_, _, svc := newTestService(t)
	userID := testNode.Generate()

	resp, err := svc.CreateProfile(asUser(userID), domain.CreateProfileRequest{
		DisplayName:       "  Ada  ",
		Category:          "art",
		SubscriptionPrice: 999,
		SocialLinks: map[string]string{
			"twitter": "https://twitter.com/ada",
			"blank":   "   ",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada", resp.DisplayName)
	// blank links are dropped
	assert.Equal(t, map[string]string{"twitter": "https://twitter.com/ada"}, resp.SocialLinks)
	assert.Equal(t, userID.String(), resp.UserID)
	assert.True(t, resp.AcceptsTips)
	assert.True(t, resp.AllowsMessages)
	assert.True(t, resp.IsActive)
	assert.Zero(t, resp.SubscriberCount)
}

func TestCreateProfile_PriceBounds(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := asUser(testNode.Generate())

	_, err := svc.CreateProfile(ctx, domain.CreateProfileRequest{DisplayName: "Ada", SubscriptionPrice: 498})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.CreateProfile(ctx, domain.CreateProfileRequest{DisplayName: "Ada", SubscriptionPrice: 5_000})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestCreateProfile_OnePerUser(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := asUser(testNode.Generate())

	_, err := svc.CreateProfile(ctx, domain.CreateProfileRequest{DisplayName: "Ada", SubscriptionPrice: 999})
	require.NoError(t, err)

	_, err = svc.CreateProfile(ctx, domain.CreateProfileRequest{DisplayName: "Ada Again", SubscriptionPrice: 999})
	assert.ErrorIs(t, err, domain.ErrDuplicateProfile)
}

func TestUpdateProfile(t *testing.T) {
	_, _, svc := newTestService(t)
	userID := testNode.Generate()
	ctx := asUser(userID)

	created, err := svc.CreateProfile(ctx, domain.CreateProfileRequest{DisplayName: "Ada", SubscriptionPrice: 999})
	require.NoError(t, err)

	newName := "Ada Prime"
	newPrice := int64(1499)
	inactive := false
	updated, err := svc.UpdateProfile(ctx, domain.UpdateProfileRequest{
		CreatorID:         created.ID,
		DisplayName:       &newName,
		SubscriptionPrice: &newPrice,
		SocialLinks:       map[string]string{"instagram": "https://instagram.com/ada"},
		IsActive:          &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Prime", updated.DisplayName)
	assert.Equal(t, int64(1499), updated.SubscriptionPrice)
	assert.Equal(t, map[string]string{"instagram": "https://instagram.com/ada"}, updated.SocialLinks)
	assert.False(t, updated.IsActive)

	// only the owner can touch the profile
	_, err = svc.UpdateProfile(asUser(testNode.Generate()), domain.UpdateProfileRequest{
		CreatorID:   created.ID,
		DisplayName: &newName,
	})
	assert.ErrorIs(t, err, domain.ErrNotProfileOwner)

	badPrice := int64(1)
	_, err = svc.UpdateProfile(ctx, domain.UpdateProfileRequest{
		CreatorID:         created.ID,
		SubscriptionPrice: &badPrice,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestGetByID(t *testing.T) {
	_, _, svc := newTestService(t)
	ctx := asUser(testNode.Generate())

	created, err := svc.CreateProfile(ctx, domain.CreateProfileRequest{DisplayName: "Ada", SubscriptionPrice: 999})
	require.NoError(t, err)

	got, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetByID(context.Background(), testNode.Generate().String())
	assert.ErrorIs(t, err, domain.ErrCreatorNotFound)
}

func TestList_CursorPagination(t *testing.T) {
	_, clk, svc := newTestService(t)

	names := []string{"first", "second", "third"}
	for _, name := range names {
		_, err := svc.CreateProfile(asUser(testNode.Generate()), domain.CreateProfileRequest{
			DisplayName:       name,
			Category:          "music",
			SubscriptionPrice: 999,
		})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	page, err := svc.List(context.Background(), domain.ListRequest{Category: "music", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Creators, 2)
	require.NotNil(t, page.PageInfo)
	assert.True(t, page.PageInfo.HasMore)
	require.NotEmpty(t, page.PageInfo.NextPageToken)

	// newest first
	assert.Equal(t, "third", page.Creators[0].DisplayName)
	assert.Equal(t, "second", page.Creators[1].DisplayName)

	rest, err := svc.List(context.Background(), domain.ListRequest{
		Category:  "music",
		PageSize:  2,
		PageToken: page.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, rest.Creators, 1)
	assert.Equal(t, "first", rest.Creators[0].DisplayName)
	assert.False(t, rest.PageInfo.HasMore)
}

func TestList_ActiveOnly(t *testing.T) {
	_, _, svc := newTestService(t)

	active, err := svc.CreateProfile(asUser(testNode.Generate()), domain.CreateProfileRequest{
		DisplayName: "visible", Category: "gaming", SubscriptionPrice: 999,
	})
	require.NoError(t, err)

	hiddenCtx := asUser(testNode.Generate())
	hidden, err := svc.CreateProfile(hiddenCtx, domain.CreateProfileRequest{
		DisplayName: "hidden", Category: "gaming", SubscriptionPrice: 999,
	})
	require.NoError(t, err)
	inactive := false
	_, err = svc.UpdateProfile(hiddenCtx, domain.UpdateProfileRequest{CreatorID: hidden.ID, IsActive: &inactive})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), domain.ListRequest{Category: "gaming", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, page.Creators, 1)
	assert.Equal(t, active.ID, page.Creators[0].ID)

	page, err = svc.List(context.Background(), domain.ListRequest{Category: "gaming"})
	require.NoError(t, err)
	assert.Len(t, page.Creators, 2)
}
