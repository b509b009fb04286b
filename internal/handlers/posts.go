package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"prismfx/internal/models"
	"prismfx/internal/repository"
	"prismfx/internal/service"
)

type authorResponse struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

type commentResponse struct {
	ID         string            `json:"id"`
	Author     authorResponse    `json:"author"`
	Content    string            `json:"content"`
	LikesCount int               `json:"likesCount"`
	IsLiked    bool              `json:"isLiked"`
	Replies    []commentResponse `json:"replies"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type postResponse struct {
	ID            string            `json:"id"`
	Author        authorResponse    `json:"author"`
	Images        []string          `json:"images"`
	Caption       string            `json:"caption"`
	LikesCount    int               `json:"likesCount"`
	IsLiked       bool              `json:"isLiked"`
	IsBookmarked  bool              `json:"isBookmarked"`
	CommentsCount int               `json:"commentsCount"`
	Comments      []commentResponse `json:"comments,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func (h HandlerSet) ListPosts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	offset := 0
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	posts, err := h.posts.List(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]postResponse, 0, len(posts))
	for _, post := range posts {
		items = append(items, toPostResponse(post))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetPost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	post, err := h.posts.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": toPostResponse(post)})
}

type addCommentRequest struct {
	Content  string  `json:"content" binding:"required"`
	ParentID *string `json:"parentId"`
}

func (h HandlerSet) AddComment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	author := models.Author{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}

	comment, err := h.posts.AddComment(c.Request.Context(), author, c.Param("id"), req.Content, req.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyComment):
			c.JSON(http.StatusBadRequest, gin.H{"error": "content_required"})
		case errors.Is(err, repository.ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "parent_not_found"})
		case errors.Is(err, repository.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": toCommentResponse(comment)})
}

func (h HandlerSet) TogglePostLike(c *gin.Context) {
	h.toggle(c, func(userID, id string) (bool, int, error) {
		return h.posts.ToggleLike(c.Request.Context(), userID, id)
	}, "post_not_found")
}

func (h HandlerSet) ToggleCommentLike(c *gin.Context) {
	h.toggle(c, func(userID, id string) (bool, int, error) {
		return h.posts.ToggleCommentLike(c.Request.Context(), userID, id)
	}, "comment_not_found")
}

func (h HandlerSet) toggle(c *gin.Context, fn func(userID, id string) (bool, int, error), notFound string) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	liked, count, err := fn(user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) || errors.Is(err, repository.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": notFound})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"liked":      liked,
		"likesCount": count,
	})
}

func (h HandlerSet) TogglePostBookmark(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bookmarked, err := h.posts.ToggleBookmark(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookmarked": bookmarked})
}

func toPostResponse(post models.Post) postResponse {
	comments := make([]commentResponse, 0, len(post.Comments))
	for _, comment := range post.Comments {
		comments = append(comments, toCommentResponse(comment))
	}

	return postResponse{
		ID:            post.ID,
		Author:        toAuthorResponse(post.Author),
		Images:        post.Images,
		Caption:       post.Caption,
		LikesCount:    post.LikesCount,
		IsLiked:       post.IsLiked,
		IsBookmarked:  post.IsBookmarked,
		CommentsCount: post.CommentsCount,
		Comments:      comments,
		CreatedAt:     post.CreatedAt,
	}
}

func toCommentResponse(comment models.Comment) commentResponse {
	replies := make([]commentResponse, 0, len(comment.Replies))
	for _, reply := range comment.Replies {
		replies = append(replies, toCommentResponse(reply))
	}

	return commentResponse{
		ID:         comment.ID,
		Author:     toAuthorResponse(comment.Author),
		Content:    comment.Content,
		LikesCount: comment.LikesCount,
		IsLiked:    comment.IsLiked,
		Replies:    replies,
		CreatedAt:  comment.CreatedAt,
	}
}

func toAuthorResponse(author models.Author) authorResponse {
	return authorResponse{
		ID:          author.ID,
		DisplayName: author.DisplayName,
		AvatarURL:   author.AvatarURL,
	}
}
