package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"prismfx/internal/config"
	"prismfx/internal/models"
	"prismfx/internal/notify"
	"prismfx/internal/queue"
	"prismfx/internal/render"
	"prismfx/internal/repository"
	"prismfx/internal/security"
	"prismfx/internal/storage"
)

// Processor consumes generation tasks and drives each library record
// through pending -> processing -> completed/failed/cancelled. It is the
// single writer of status; the API only reads and raises flags.
type Processor struct {
	images   *repository.ImageRepository
	effects  *repository.EffectRepository
	store    *storage.ObjectStore
	engine   *render.Engine
	redis    *redis.Client
	notifier *notify.Publisher
	cfg      *config.AppConfig
	logger   zerolog.Logger
}

func NewProcessor(
	images *repository.ImageRepository,
	effects *repository.EffectRepository,
	store *storage.ObjectStore,
	engine *render.Engine,
	redisClient *redis.Client,
	notifier *notify.Publisher,
	cfg *config.AppConfig,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		images:   images,
		effects:  effects,
		store:    store,
		engine:   engine,
		redis:    redisClient,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload queue.TaskPayload
	if err := queue.DecodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case queue.TaskGenerate:
		return p.handleGenerate(ctx, payload)
	case queue.TaskCleanup:
		return p.handleCleanup(ctx)
	case queue.TaskRequeue:
		return p.handleRequeue(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleGenerate(ctx context.Context, payload queue.TaskPayload) error {
	image, err := p.images.GetByID(ctx, payload.ImageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			// Deleted before we got to it; ack and move on.
			return nil
		}
		return err
	}

	if image.Status.Terminal() {
		return nil
	}

	if cancelled, _ := queue.CancelRequested(ctx, p.redis, payload.TaskID); cancelled {
		return p.markCancelled(ctx, image)
	}

	if err := p.images.UpdateStatus(ctx, image.ID, models.GenerationStatusProcessing, nil); err != nil {
		return err
	}
	p.progress(ctx, image, 10)

	effect, err := p.effects.GetByID(ctx, payload.EffectID)
	if err != nil {
		return p.markFailed(ctx, image, fmt.Sprintf("effect unavailable: %v", err))
	}

	result, err := p.engine.Generate(ctx, effect.PromptTmpl)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.markFailed(ctx, image, err.Error())
	}
	p.progress(ctx, image, 70)

	// Last checkpoint before the render becomes visible.
	if cancelled, _ := queue.CancelRequested(ctx, p.redis, payload.TaskID); cancelled {
		return p.markCancelled(ctx, image)
	}

	bucket := p.cfg.Storage.BucketRenders
	objectKey := buildObjectKey(image.ID)
	if _, err := p.store.Put(ctx, bucket, objectKey, bytes.NewReader(result.Data), int64(len(result.Data)), result.ContentType); err != nil {
		return p.markFailed(ctx, image, fmt.Sprintf("store render: %v", err))
	}
	p.progress(ctx, image, 90)

	url := p.store.PublicURL(bucket, objectKey)
	signature := security.SignResource(p.cfg.Security.SignatureSecret, image.ID, objectKey)

	if err := p.images.MarkCompleted(ctx, image.ID, bucket, objectKey, url, signature); err != nil {
		return err
	}

	p.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  image.UserID,
		ImageID: image.ID,
		Status:  models.GenerationStatusCompleted,
	})

	p.logger.Info().
		Str("image_id", image.ID).
		Str("effect", effect.Name).
		Msg("generation completed")
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-24 * time.Hour)
	purged, err := p.images.PurgeCancelledBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		p.logger.Info().Int64("purged", purged).Msg("cancelled records purged")
	}
	return nil
}

// handleRequeue re-enqueues pending records whose task message was lost
// (enqueue failure, stream trim).
func (p *Processor) handleRequeue(ctx context.Context) error {
	stalled, err := p.images.ListStalled(ctx, time.Now().Add(-p.cfg.Queue.ClaimInterval*4))
	if err != nil {
		return err
	}

	for _, image := range stalled {
		if cancelled, _ := queue.CancelRequested(ctx, p.redis, image.TaskID); cancelled {
			if err := p.markCancelled(ctx, image); err != nil {
				p.logger.Error().Err(err).Str("image_id", image.ID).Msg("cancel stalled record failed")
			}
			continue
		}
		err := queue.Enqueue(ctx, p.redis, p.cfg.Queue.Stream, queue.TaskPayload{
			Type:     queue.TaskGenerate,
			TaskID:   image.TaskID,
			ImageID:  image.ID,
			EffectID: image.EffectID,
			UserID:   image.UserID,
		})
		if err != nil {
			p.logger.Error().Err(err).Str("image_id", image.ID).Msg("requeue failed")
			continue
		}
		p.logger.Info().Str("image_id", image.ID).Msg("stalled generation requeued")
	}
	return nil
}

func (p *Processor) markFailed(ctx context.Context, image models.GeneratedImage, message string) error {
	if err := p.images.UpdateStatus(ctx, image.ID, models.GenerationStatusFailed, &message); err != nil {
		return err
	}
	p.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  image.UserID,
		ImageID: image.ID,
		Status:  models.GenerationStatusFailed,
	})
	p.logger.Warn().Str("image_id", image.ID).Str("reason", message).Msg("generation failed")
	return nil
}

func (p *Processor) markCancelled(ctx context.Context, image models.GeneratedImage) error {
	if err := p.images.UpdateStatus(ctx, image.ID, models.GenerationStatusCancelled, nil); err != nil {
		return err
	}
	p.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  image.UserID,
		ImageID: image.ID,
		Status:  models.GenerationStatusCancelled,
	})
	p.logger.Info().Str("image_id", image.ID).Msg("generation cancelled")
	return nil
}

func (p *Processor) progress(ctx context.Context, image models.GeneratedImage, value int) {
	if err := p.images.UpdateProgress(ctx, image.ID, value); err != nil {
		p.logger.Warn().Err(err).Str("image_id", image.ID).Msg("progress update failed")
		return
	}
	p.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  image.UserID,
		ImageID: image.ID,
		Status:  models.GenerationStatusProcessing,
	})
}

func buildObjectKey(imageID string) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(datePrefix, imageID+".png")
}
