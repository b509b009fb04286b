package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prismfx/internal/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
)

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func (r *PostRepository) Create(ctx context.Context, post models.Post) error {
	const query = `
		INSERT INTO posts (
			id, user_id, images, caption, likes_count, comments_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		post.ID,
		post.Author.ID,
		post.Images,
		post.Caption,
		post.LikesCount,
		post.CommentsCount,
	)
	return err
}

const selectPost = `
	SELECT p.id, p.images, p.caption, p.likes_count, p.comments_count, p.created_at,
	       u.id, u.display_name, u.avatar_url,
	       EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.user_id = $1),
	       EXISTS (SELECT 1 FROM post_bookmarks pb WHERE pb.post_id = p.id AND pb.user_id = $1)
	FROM posts p
	JOIN users u ON u.id = p.user_id
`

// GetByID loads a post with like/bookmark state resolved for viewerID.
// Comments are loaded separately via ListComments.
func (r *PostRepository) GetByID(ctx context.Context, viewerID, id string) (models.Post, error) {
	const query = selectPost + ` WHERE p.id = $2`

	row := r.pool.QueryRow(ctx, query, viewerID, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) List(ctx context.Context, viewerID string, limit, offset int) ([]models.Post, error) {
	const query = selectPost + `
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, viewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListComments returns the post's comments flat, oldest first; tree assembly
// happens in the service layer.
func (r *PostRepository) ListComments(ctx context.Context, viewerID, postID string) ([]models.Comment, error) {
	const query = `
		SELECT c.id, c.post_id, c.parent_id, c.content, c.likes_count, c.created_at,
		       u.id, u.display_name, u.avatar_url,
		       EXISTS (SELECT 1 FROM comment_likes cl WHERE cl.comment_id = c.id AND cl.user_id = $1)
		FROM post_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $2
		ORDER BY c.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, viewerID, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var comment models.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.ParentID,
			&comment.Content,
			&comment.LikesCount,
			&comment.CreatedAt,
			&comment.Author.ID,
			&comment.Author.DisplayName,
			&comment.Author.AvatarURL,
			&comment.IsLiked,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (r *PostRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	const query = `
		SELECT id, post_id, parent_id, user_id, content, likes_count, created_at
		FROM post_comments WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var comment models.Comment
	if err := row.Scan(
		&comment.ID,
		&comment.PostID,
		&comment.ParentID,
		&comment.Author.ID,
		&comment.Content,
		&comment.LikesCount,
		&comment.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrCommentNotFound
		}
		return models.Comment{}, err
	}
	return comment, nil
}

// CreateComment inserts the comment and bumps the post counter in one
// transaction.
func (r *PostRepository) CreateComment(ctx context.Context, comment models.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO post_comments (
			id, post_id, parent_id, user_id, content, likes_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, 0, NOW()
		)
	`
	if _, err := tx.Exec(ctx, insert,
		comment.ID,
		comment.PostID,
		comment.ParentID,
		comment.Author.ID,
		comment.Content,
	); err != nil {
		return err
	}

	const bump = `
		UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1
	`
	if _, err := tx.Exec(ctx, bump, comment.PostID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TogglePostLike flips the viewer's like and adjusts the counter, returning
// the new liked state and count.
func (r *PostRepository) TogglePostLike(ctx context.Context, userID, postID string) (bool, int, error) {
	return r.toggle(ctx, userID, postID,
		`DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2`,
		`INSERT INTO post_likes (user_id, post_id) VALUES ($1, $2)`,
		`UPDATE posts SET likes_count = GREATEST(likes_count + $2, 0) WHERE id = $1 RETURNING likes_count`,
	)
}

// ToggleCommentLike behaves like TogglePostLike for a single comment.
func (r *PostRepository) ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, int, error) {
	return r.toggle(ctx, userID, commentID,
		`DELETE FROM comment_likes WHERE user_id = $1 AND comment_id = $2`,
		`INSERT INTO comment_likes (user_id, comment_id) VALUES ($1, $2)`,
		`UPDATE post_comments SET likes_count = GREATEST(likes_count + $2, 0) WHERE id = $1 RETURNING likes_count`,
	)
}

// ToggleBookmark flips the viewer's bookmark; no counter is kept.
func (r *PostRepository) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM post_bookmarks WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO post_bookmarks (user_id, post_id) VALUES ($1, $2)`,
		userID, postID,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostRepository) toggle(ctx context.Context, userID, targetID, deleteSQL, insertSQL, countSQL string) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, deleteSQL, userID, targetID)
	if err != nil {
		return false, 0, err
	}

	liked := cmd.RowsAffected() == 0
	delta := -1
	if liked {
		if _, err := tx.Exec(ctx, insertSQL, userID, targetID); err != nil {
			return false, 0, err
		}
		delta = 1
	}

	var count int
	if err := tx.QueryRow(ctx, countSQL, targetID, delta).Scan(&count); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.Images,
		&post.Caption,
		&post.LikesCount,
		&post.CommentsCount,
		&post.CreatedAt,
		&post.Author.ID,
		&post.Author.DisplayName,
		&post.Author.AvatarURL,
		&post.IsLiked,
		&post.IsBookmarked,
	)
	return post, err
}
