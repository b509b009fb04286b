package service

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"prismfx/internal/config"
	"prismfx/internal/ids"
	"prismfx/internal/models"
	"prismfx/internal/notify"
	"prismfx/internal/queue"
	"prismfx/internal/repository"
	"prismfx/internal/security"
)

var (
	// ErrInvalidTransition marks a command that the image's current status
	// does not allow (cancel outside pending/processing, retry outside
	// failed, download outside completed).
	ErrInvalidTransition = errors.New("action not allowed for current status")
	ErrNotOwner          = errors.New("image does not belong to user")
)

// imageStore is the slice of the image repository the service depends on.
type imageStore interface {
	Create(ctx context.Context, image models.GeneratedImage) error
	GetByID(ctx context.Context, id string) (models.GeneratedImage, error)
	ListByUser(ctx context.Context, userID string) ([]models.GeneratedImage, error)
	UpdateStatus(ctx context.Context, id string, status models.GenerationStatus, errorMessage *string) error
	ResetForRetry(ctx context.Context, id string) error
	Remove(ctx context.Context, userID, id string) error
	ClearByUser(ctx context.Context, userID string) error
}

type effectStore interface {
	GetByID(ctx context.Context, id string) (models.Effect, error)
}

type renderStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, string, error)
	Remove(ctx context.Context, bucket, key string) error
}

// taskQueue covers the producer side of the worker queue: enqueue plus the
// cancel flags checked mid-render.
type taskQueue interface {
	Enqueue(ctx context.Context, payload queue.TaskPayload) error
	RequestCancel(ctx context.Context, taskID string) error
	ClearCancel(ctx context.Context, taskID string) error
}

type libraryNotifier interface {
	LibraryChanged(ctx context.Context, event notify.Event)
}

type GenerationService struct {
	images   imageStore
	effects  effectStore
	store    renderStore
	tasks    taskQueue
	notifier libraryNotifier
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewGenerationService(
	images imageStore,
	effects effectStore,
	store renderStore,
	tasks taskQueue,
	notifier libraryNotifier,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *GenerationService {
	return &GenerationService{
		images:   images,
		effects:  effects,
		store:    store,
		tasks:    tasks,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

// Start creates a pending library record and enqueues the render task.
func (s *GenerationService) Start(ctx context.Context, user models.User, effectID string) (models.GeneratedImage, error) {
	effect, err := s.effects.GetByID(ctx, effectID)
	if err != nil {
		return models.GeneratedImage{}, err
	}

	image := models.GeneratedImage{
		ID:         ids.New(),
		UserID:     user.ID,
		EffectID:   effect.ID,
		EffectName: effect.Name,
		TaskID:     ids.New(),
		Status:     models.GenerationStatusPending,
		Progress:   0,
	}

	if err := s.images.Create(ctx, image); err != nil {
		return models.GeneratedImage{}, fmt.Errorf("save record: %w", err)
	}

	if err := s.enqueue(ctx, image); err != nil {
		// The record stays pending; the stalled-task requeue picks it up.
		s.log.Warn().Err(err).Str("image_id", image.ID).Msg("enqueue generation failed")
	}

	s.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  user.ID,
		ImageID: image.ID,
		Status:  image.Status,
	})

	return image, nil
}

// List returns the user's full library snapshot, newest first. Clients
// reload this after every command rather than patching records locally.
func (s *GenerationService) List(ctx context.Context, userID string) ([]models.GeneratedImage, error) {
	return s.images.ListByUser(ctx, userID)
}

// Cancel raises the task's cancel flag. Pending records flip to cancelled
// immediately; processing records are cancelled by the worker at its next
// checkpoint. Returns false without error when the remote flag cannot be
// set, so callers can surface a soft failure.
func (s *GenerationService) Cancel(ctx context.Context, userID, imageID string) (bool, error) {
	image, err := s.owned(ctx, userID, imageID)
	if err != nil {
		return false, err
	}
	if !image.CanCancel() {
		return false, ErrInvalidTransition
	}

	if err := s.tasks.RequestCancel(ctx, image.TaskID); err != nil {
		s.log.Warn().Err(err).Str("task_id", image.TaskID).Msg("cancel flag failed")
		return false, nil
	}

	if image.Status == models.GenerationStatusPending {
		if err := s.images.UpdateStatus(ctx, image.ID, models.GenerationStatusCancelled, nil); err != nil {
			return false, nil
		}
		s.notifier.LibraryChanged(ctx, notify.Event{
			UserID:  userID,
			ImageID: image.ID,
			Status:  models.GenerationStatusCancelled,
		})
	}

	return true, nil
}

// Retry re-enqueues a failed generation under the same task id, re-entering
// the lifecycle at pending.
func (s *GenerationService) Retry(ctx context.Context, userID, imageID string) (bool, error) {
	image, err := s.owned(ctx, userID, imageID)
	if err != nil {
		return false, err
	}
	if !image.CanRetry() {
		return false, ErrInvalidTransition
	}

	if err := s.tasks.ClearCancel(ctx, image.TaskID); err != nil {
		s.log.Warn().Err(err).Str("task_id", image.TaskID).Msg("clear cancel flag failed")
	}

	if err := s.images.ResetForRetry(ctx, image.ID); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			// Lost the race with another status change.
			return false, ErrInvalidTransition
		}
		return false, err
	}

	image.Status = models.GenerationStatusPending
	if err := s.enqueue(ctx, image); err != nil {
		// The record is already pending; the stalled-task requeue delivers it.
		s.log.Warn().Err(err).Str("image_id", image.ID).Msg("re-enqueue failed")
	}

	s.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  userID,
		ImageID: image.ID,
		Status:  models.GenerationStatusPending,
	})
	return true, nil
}

// DownloadResult streams a completed render; Reader must be closed by the
// caller.
type DownloadResult struct {
	Reader      io.ReadCloser
	Size        int64
	ContentType string
	Filename    string
}

// Download serves the rendered object. Guarded to completed records with a
// URL; the stored signature is verified before anything is streamed.
func (s *GenerationService) Download(ctx context.Context, userID, imageID string) (DownloadResult, error) {
	image, err := s.owned(ctx, userID, imageID)
	if err != nil {
		return DownloadResult{}, err
	}
	if !image.CanDownload() {
		return DownloadResult{}, ErrInvalidTransition
	}

	expected := security.SignResource(s.cfg.Security.SignatureSecret, image.ID, image.ObjectKey)
	if !hmac.Equal(expected, image.Signature) {
		return DownloadResult{}, fmt.Errorf("render signature mismatch for %s", image.ID)
	}

	reader, size, contentType, err := s.store.Get(ctx, image.Bucket, image.ObjectKey)
	if err != nil {
		return DownloadResult{}, err
	}

	return DownloadResult{
		Reader:      reader,
		Size:        size,
		ContentType: contentType,
		Filename:    image.DownloadFilename(),
	}, nil
}

// Delete removes the record unconditionally, raising the cancel flag first
// for records still in flight.
func (s *GenerationService) Delete(ctx context.Context, userID, imageID string) error {
	image, err := s.owned(ctx, userID, imageID)
	if err != nil {
		return err
	}

	if image.CanCancel() {
		if err := s.tasks.RequestCancel(ctx, image.TaskID); err != nil {
			s.log.Warn().Err(err).Str("task_id", image.TaskID).Msg("cancel flag on delete failed")
		}
	}

	if err := s.images.Remove(ctx, userID, imageID); err != nil {
		return err
	}

	if image.ObjectKey != "" {
		if err := s.store.Remove(ctx, image.Bucket, image.ObjectKey); err != nil {
			s.log.Warn().Err(err).Str("object_key", image.ObjectKey).Msg("remove render object failed")
		}
	}

	s.notifier.LibraryChanged(ctx, notify.Event{
		UserID:  userID,
		ImageID: imageID,
		Status:  image.Status,
	})
	return nil
}

// ClearAll empties the user's library.
func (s *GenerationService) ClearAll(ctx context.Context, userID string) error {
	images, err := s.images.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, image := range images {
		if image.CanCancel() {
			if err := s.tasks.RequestCancel(ctx, image.TaskID); err != nil {
				s.log.Warn().Err(err).Str("task_id", image.TaskID).Msg("cancel flag on clear failed")
			}
		}
		if image.ObjectKey != "" {
			if err := s.store.Remove(ctx, image.Bucket, image.ObjectKey); err != nil {
				s.log.Warn().Err(err).Str("object_key", image.ObjectKey).Msg("remove render object failed")
			}
		}
	}

	if err := s.images.ClearByUser(ctx, userID); err != nil {
		return err
	}

	s.notifier.LibraryChanged(ctx, notify.Event{UserID: userID})
	return nil
}

func (s *GenerationService) owned(ctx context.Context, userID, imageID string) (models.GeneratedImage, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return models.GeneratedImage{}, err
	}
	if image.UserID != userID {
		return models.GeneratedImage{}, ErrNotOwner
	}
	return image, nil
}

func (s *GenerationService) enqueue(ctx context.Context, image models.GeneratedImage) error {
	return s.tasks.Enqueue(ctx, queue.TaskPayload{
		Type:     queue.TaskGenerate,
		TaskID:   image.TaskID,
		ImageID:  image.ID,
		EffectID: image.EffectID,
		UserID:   image.UserID,
	})
}
