package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"prismfx/internal/ids"
	"prismfx/internal/models"
	"prismfx/internal/repository"
)

var ErrEmptyComment = errors.New("comment content required")

// postStore is the slice of the post repository the service depends on.
type postStore interface {
	List(ctx context.Context, viewerID string, limit, offset int) ([]models.Post, error)
	GetByID(ctx context.Context, viewerID, id string) (models.Post, error)
	ListComments(ctx context.Context, viewerID, postID string) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	CreateComment(ctx context.Context, comment models.Comment) error
	TogglePostLike(ctx context.Context, userID, postID string) (bool, int, error)
	ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, int, error)
	ToggleBookmark(ctx context.Context, userID, postID string) (bool, error)
}

type PostService struct {
	posts postStore
	log   zerolog.Logger
}

func NewPostService(posts postStore, log zerolog.Logger) *PostService {
	return &PostService{
		posts: posts,
		log:   log,
	}
}

func (s *PostService) List(ctx context.Context, viewerID string, limit, offset int) ([]models.Post, error) {
	return s.posts.List(ctx, viewerID, limit, offset)
}

// Get loads a post with its comment tree assembled.
func (s *PostService) Get(ctx context.Context, viewerID, postID string) (models.Post, error) {
	post, err := s.posts.GetByID(ctx, viewerID, postID)
	if err != nil {
		return models.Post{}, err
	}

	flat, err := s.posts.ListComments(ctx, viewerID, postID)
	if err != nil {
		return models.Post{}, err
	}

	post.Comments = assembleCommentTree(flat)
	return post, nil
}

// AddComment appends a top-level comment, or a reply when parentID is set.
// Replies nest exactly one level: replying to a reply attaches to that
// reply's top-level parent.
func (s *PostService) AddComment(ctx context.Context, author models.Author, postID, content string, parentID *string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, ErrEmptyComment
	}

	if _, err := s.posts.GetByID(ctx, author.ID, postID); err != nil {
		return models.Comment{}, err
	}

	if parentID != nil {
		parent, err := s.posts.GetComment(ctx, *parentID)
		if err != nil {
			return models.Comment{}, err
		}
		if parent.PostID != postID {
			return models.Comment{}, repository.ErrCommentNotFound
		}
		if parent.ParentID != nil {
			parentID = parent.ParentID
		}
	}

	comment := models.Comment{
		ID:       ids.New(),
		PostID:   postID,
		ParentID: parentID,
		Author:   author,
		Content:  content,
	}

	if err := s.posts.CreateComment(ctx, comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// ToggleLike flips the viewer's like on the post and reports the new state.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID string) (bool, int, error) {
	if _, err := s.posts.GetByID(ctx, userID, postID); err != nil {
		return false, 0, err
	}
	return s.posts.TogglePostLike(ctx, userID, postID)
}

func (s *PostService) ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, int, error) {
	if _, err := s.posts.GetComment(ctx, commentID); err != nil {
		return false, 0, err
	}
	return s.posts.ToggleCommentLike(ctx, userID, commentID)
}

func (s *PostService) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	if _, err := s.posts.GetByID(ctx, userID, postID); err != nil {
		return false, err
	}
	return s.posts.ToggleBookmark(ctx, userID, postID)
}

// assembleCommentTree nests replies under their top-level parents, keeping
// the incoming (oldest first) order at both levels. Orphaned replies are
// promoted to top level rather than dropped.
func assembleCommentTree(flat []models.Comment) []models.Comment {
	byID := make(map[string]int, len(flat))
	for i, comment := range flat {
		if comment.ParentID == nil {
			byID[comment.ID] = i
		}
	}

	roots := make([]models.Comment, 0, len(flat))
	index := make(map[string]int, len(flat))
	for _, comment := range flat {
		if comment.ParentID != nil {
			if _, ok := byID[*comment.ParentID]; ok {
				continue
			}
			comment.ParentID = nil
		}
		index[comment.ID] = len(roots)
		roots = append(roots, comment)
	}

	for _, comment := range flat {
		if comment.ParentID == nil {
			continue
		}
		if at, ok := index[*comment.ParentID]; ok {
			roots[at].Replies = append(roots[at].Replies, comment)
		}
	}

	return roots
}
