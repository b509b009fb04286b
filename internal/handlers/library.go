package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prismfx/internal/models"
	"prismfx/internal/repository"
	"prismfx/internal/service"
)

type generatedImageResponse struct {
	ID           string    `json:"id"`
	EffectID     string    `json:"effectId"`
	EffectName   string    `json:"effectName"`
	TaskID       string    `json:"taskId"`
	URL          *string   `json:"url,omitempty"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CanCancel    bool      `json:"canCancel"`
	CanRetry     bool      `json:"canRetry"`
	CanDownload  bool      `json:"canDownload"`
	CreatedAt    time.Time `json:"createdAt"`
}

type startGenerationRequest struct {
	EffectID string `json:"effectId" binding:"required"`
}

func (h HandlerSet) StartGeneration(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req startGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	image, err := h.generations.Start(c.Request.Context(), user, req.EffectID)
	if err != nil {
		if errors.Is(err, repository.ErrEffectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "effect_not_found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("start generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"image": toImageResponse(image)})
}

func (h HandlerSet) ListGenerations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	images, err := h.generations.List(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]generatedImageResponse, 0, len(images))
	for _, image := range images {
		items = append(items, toImageResponse(image))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// LibraryEvents streams library-change notifications for the current user
// as server-sent events; clients respond by reloading the list.
func (h HandlerSet) LibraryEvents(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	events := h.subscriber.Subscribe(c.Request.Context())

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		if event.UserID != user.ID {
			return true
		}
		c.SSEvent("library", event)
		return true
	})
}

func (h HandlerSet) CancelGeneration(c *gin.Context) {
	h.command(c, h.generations.Cancel)
}

func (h HandlerSet) RetryGeneration(c *gin.Context) {
	h.command(c, h.generations.Retry)
}

// command wraps cancel/retry: both return {success} and both fail soft on
// remote errors per the client contract.
func (h HandlerSet) command(c *gin.Context, fn func(ctx context.Context, userID, imageID string) (bool, error)) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	success, err := fn(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrImageNotFound), errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_status", "success": false})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": success})
}

func (h HandlerSet) DownloadGeneration(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.generations.Download(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrImageNotFound), errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "not_completed"})
		default:
			h.log.Error().Err(err).Str("image_id", c.Param("id")).Msg("download failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "download_failed"})
		}
		return
	}
	defer result.Reader.Close()

	c.DataFromReader(http.StatusOK, result.Size, result.ContentType, result.Reader, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename=%q`, result.Filename),
	})
}

func (h HandlerSet) DeleteGeneration(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.generations.Delete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) || errors.Is(err, service.ErrNotOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ClearGenerations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.generations.ClearAll(c.Request.Context(), user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func toImageResponse(image models.GeneratedImage) generatedImageResponse {
	return generatedImageResponse{
		ID:           image.ID,
		EffectID:     image.EffectID,
		EffectName:   image.EffectName,
		TaskID:       image.TaskID,
		URL:          image.URL,
		Status:       string(image.Status),
		Progress:     image.Progress,
		ErrorMessage: image.ErrorMessage,
		CanCancel:    image.CanCancel(),
		CanRetry:     image.CanRetry(),
		CanDownload:  image.CanDownload(),
		CreatedAt:    image.CreatedAt,
	}
}
