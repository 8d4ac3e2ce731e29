package repository

import (
	"context"
	"time"

	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const postColumns = `id, creator_id, title, body, visibility, like_count, comment_count,
	 created_at, updated_at`

type repo struct{}

func Provide() contentdomain.Repository {
	return &repo{}
}

func (r *repo) InsertPost(ctx context.Context, db *gorm.DB, post *contentdomain.Post) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO posts (
			id, creator_id, title, body, visibility, like_count, comment_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.CreatorID,
		post.Title,
		post.Body,
		post.Visibility,
		post.LikeCount,
		post.CommentCount,
		post.CreatedAt,
		post.UpdatedAt,
	).Error
}

func (r *repo) FindPostByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*contentdomain.Post, error) {
	return r.findPost(ctx, db, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
}

func (r *repo) FindPostByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*contentdomain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += ` FOR UPDATE`
	}
	return r.findPost(ctx, db, query, id)
}

func (r *repo) findPost(ctx context.Context, db *gorm.DB, query string, args ...any) (*contentdomain.Post, error) {
	var post contentdomain.Post
	err := db.WithContext(ctx).Raw(query, args...).Scan(&post).Error
	if err != nil {
		return nil, err
	}
	if post.ID == 0 {
		return nil, nil
	}
	return &post, nil
}

func (r *repo) ListPostsByCreator(ctx context.Context, db *gorm.DB, creatorID snowflake.ID, limit int) ([]contentdomain.Post, error) {
	if limit <= 0 {
		limit = 50
	}

	var posts []contentdomain.Post
	err := db.WithContext(ctx).Raw(
		`SELECT `+postColumns+` FROM posts
		 WHERE creator_id = ? ORDER BY created_at DESC LIMIT ?`,
		creatorID,
		limit,
	).Scan(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *repo) UpdatePost(ctx context.Context, db *gorm.DB, post *contentdomain.Post) error {
	return db.WithContext(ctx).Exec(
		`UPDATE posts SET title = ?, body = ?, visibility = ?, updated_at = ? WHERE id = ?`,
		post.Title,
		post.Body,
		post.Visibility,
		post.UpdatedAt,
		post.ID,
	).Error
}

func (r *repo) DeletePost(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM posts WHERE id = ?`, id).Error
}

func (r *repo) InsertMedia(ctx context.Context, db *gorm.DB, media *contentdomain.Media) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO media (id, post_id, media_type, url, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		media.ID,
		media.PostID,
		media.MediaType,
		media.URL,
		media.Position,
		media.CreatedAt,
	).Error
}

func (r *repo) ListMediaByPost(ctx context.Context, db *gorm.DB, postID snowflake.ID) ([]contentdomain.Media, error) {
	var media []contentdomain.Media
	err := db.WithContext(ctx).Raw(
		`SELECT id, post_id, media_type, url, position, created_at
		 FROM media WHERE post_id = ? ORDER BY position ASC, id ASC`,
		postID,
	).Scan(&media).Error
	if err != nil {
		return nil, err
	}
	return media, nil
}

func (r *repo) InsertLike(ctx context.Context, db *gorm.DB, like *contentdomain.PostLike) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO post_likes (id, post_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		like.ID,
		like.PostID,
		like.UserID,
		like.CreatedAt,
	).Error
}

func (r *repo) DeleteLike(ctx context.Context, db *gorm.DB, postID, userID snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`,
		postID,
		userID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) AdjustLikeCount(ctx context.Context, db *gorm.DB, postID snowflake.ID, delta int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE posts
		 SET like_count = CASE WHEN like_count + ? < 0 THEN 0 ELSE like_count + ? END,
		     updated_at = ?
		 WHERE id = ?`,
		delta,
		delta,
		at,
		postID,
	).Error
}

func (r *repo) AdjustCommentCount(ctx context.Context, db *gorm.DB, postID snowflake.ID, delta int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE posts
		 SET comment_count = CASE WHEN comment_count + ? < 0 THEN 0 ELSE comment_count + ? END,
		     updated_at = ?
		 WHERE id = ?`,
		delta,
		delta,
		at,
		postID,
	).Error
}
