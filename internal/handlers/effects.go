package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prismfx/internal/catalog"
	"prismfx/internal/models"
	"prismfx/internal/repository"
)

type effectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	Difficulty  string    `json:"difficulty"`
	PreviewURL  *string   `json:"previewUrl,omitempty"`
	LikesCount  int       `json:"likesCount"`
	IsTrending  bool      `json:"isTrending"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h HandlerSet) ListEffects(c *gin.Context) {
	opts := catalog.Options{
		Query:      c.Query("q"),
		Category:   c.Query("category"),
		Difficulty: c.Query("difficulty"),
		Sort:       catalog.SortKey(c.DefaultQuery("sort", string(catalog.SortPopular))),
	}

	effects, err := h.catalog.List(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]effectResponse, 0, len(effects))
	for _, effect := range effects {
		items = append(items, toEffectResponse(effect))
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}

func (h HandlerSet) ListCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h HandlerSet) GetEffect(c *gin.Context) {
	effect, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrEffectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "effect_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"effect": toEffectResponse(effect)})
}

func (h HandlerSet) LikeEffect(c *gin.Context) {
	if err := h.catalog.Like(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrEffectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "effect_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type createEffectRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category" binding:"required"`
	Difficulty  string   `json:"difficulty" binding:"required,oneof=beginner intermediate advanced"`
	PromptTmpl  string   `json:"promptTmpl" binding:"required"`
	PreviewURL  *string  `json:"previewUrl"`
	IsTrending  bool     `json:"isTrending"`
}

func (h HandlerSet) AdminCreateEffect(c *gin.Context) {
	var req createEffectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	effect, err := h.catalog.Create(c.Request.Context(), models.Effect{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Category:    req.Category,
		Difficulty:  models.EffectDifficulty(req.Difficulty),
		PromptTmpl:  req.PromptTmpl,
		PreviewURL:  req.PreviewURL,
		IsTrending:  req.IsTrending,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"effect": toEffectResponse(effect)})
}

func toEffectResponse(effect models.Effect) effectResponse {
	return effectResponse{
		ID:          effect.ID,
		Name:        effect.Name,
		Description: effect.Description,
		Tags:        effect.Tags,
		Category:    effect.Category,
		Difficulty:  string(effect.Difficulty),
		PreviewURL:  effect.PreviewURL,
		LikesCount:  effect.LikesCount,
		IsTrending:  effect.IsTrending,
		CreatedAt:   effect.CreatedAt,
	}
}
