package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prismfx/internal/config"
	"prismfx/internal/models"
	"prismfx/internal/notify"
	"prismfx/internal/queue"
	"prismfx/internal/repository"
	"prismfx/internal/security"
)

type fakeImageStore struct {
	images map[string]models.GeneratedImage
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{images: make(map[string]models.GeneratedImage)}
}

func (f *fakeImageStore) Create(ctx context.Context, image models.GeneratedImage) error {
	f.images[image.ID] = image
	return nil
}

func (f *fakeImageStore) GetByID(ctx context.Context, id string) (models.GeneratedImage, error) {
	image, ok := f.images[id]
	if !ok {
		return models.GeneratedImage{}, repository.ErrImageNotFound
	}
	return image, nil
}

func (f *fakeImageStore) ListByUser(ctx context.Context, userID string) ([]models.GeneratedImage, error) {
	var out []models.GeneratedImage
	for _, image := range f.images {
		if image.UserID == userID {
			out = append(out, image)
		}
	}
	return out, nil
}

func (f *fakeImageStore) UpdateStatus(ctx context.Context, id string, status models.GenerationStatus, errorMessage *string) error {
	image, ok := f.images[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	image.Status = status
	image.ErrorMessage = errorMessage
	f.images[id] = image
	return nil
}

func (f *fakeImageStore) ResetForRetry(ctx context.Context, id string) error {
	image, ok := f.images[id]
	if !ok || image.Status != models.GenerationStatusFailed {
		return repository.ErrImageNotFound
	}
	image.Status = models.GenerationStatusPending
	image.Progress = 0
	image.ErrorMessage = nil
	f.images[id] = image
	return nil
}

func (f *fakeImageStore) Remove(ctx context.Context, userID, id string) error {
	image, ok := f.images[id]
	if !ok || image.UserID != userID {
		return repository.ErrImageNotFound
	}
	delete(f.images, id)
	return nil
}

func (f *fakeImageStore) ClearByUser(ctx context.Context, userID string) error {
	for id, image := range f.images {
		if image.UserID == userID {
			delete(f.images, id)
		}
	}
	return nil
}

type fakeEffectStore struct {
	effects map[string]models.Effect
}

func (f *fakeEffectStore) GetByID(ctx context.Context, id string) (models.Effect, error) {
	effect, ok := f.effects[id]
	if !ok {
		return models.Effect{}, repository.ErrEffectNotFound
	}
	return effect, nil
}

type fakeTaskQueue struct {
	enqueued   []queue.TaskPayload
	enqueueErr error
	cancelled  []string
	cleared    []string
}

func (f *fakeTaskQueue) Enqueue(ctx context.Context, payload queue.TaskPayload) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, payload)
	return nil
}

func (f *fakeTaskQueue) RequestCancel(ctx context.Context, taskID string) error {
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

func (f *fakeTaskQueue) ClearCancel(ctx context.Context, taskID string) error {
	f.cleared = append(f.cleared, taskID)
	return nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (f *fakeNotifier) LibraryChanged(ctx context.Context, event notify.Event) {
	f.events = append(f.events, event)
}

type fakeRenderStore struct {
	content string
	removed []string
}

func (f *fakeRenderStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, string, error) {
	return io.NopCloser(strings.NewReader(f.content)), int64(len(f.content)), "image/png", nil
}

func (f *fakeRenderStore) Remove(ctx context.Context, bucket, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type generationFixture struct {
	svc      *GenerationService
	images   *fakeImageStore
	tasks    *fakeTaskQueue
	notifier *fakeNotifier
	store    *fakeRenderStore
}

func newGenerationFixture() *generationFixture {
	images := newFakeImageStore()
	tasks := &fakeTaskQueue{}
	notifier := &fakeNotifier{}
	store := &fakeRenderStore{content: "png-bytes"}
	effects := &fakeEffectStore{effects: map[string]models.Effect{
		"fx1": {ID: "fx1", Name: "Vintage Glow", PromptTmpl: "vintage photo"},
	}}

	cfg := &config.AppConfig{
		Security: config.SecurityConfig{SignatureSecret: "sig-secret"},
	}

	return &generationFixture{
		svc:      NewGenerationService(images, effects, store, tasks, notifier, cfg, zerolog.Nop()),
		images:   images,
		tasks:    tasks,
		notifier: notifier,
		store:    store,
	}
}

func seedImage(f *generationFixture, status models.GenerationStatus) models.GeneratedImage {
	image := models.GeneratedImage{
		ID:        "img1",
		UserID:    "u1",
		EffectID:  "fx1",
		TaskID:    "task1",
		Status:    status,
		CreatedAt: time.Now(),
	}
	f.images.images[image.ID] = image
	return image
}

func TestStartCreatesPendingAndEnqueues(t *testing.T) {
	f := newGenerationFixture()

	image, err := f.svc.Start(context.Background(), models.User{ID: "u1"}, "fx1")

	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusPending, image.Status)
	assert.Equal(t, "Vintage Glow", image.EffectName)
	require.Len(t, f.tasks.enqueued, 1)
	assert.Equal(t, queue.TaskGenerate, f.tasks.enqueued[0].Type)
	assert.Equal(t, image.TaskID, f.tasks.enqueued[0].TaskID)
}

func TestStartLeavesPendingRecordWhenEnqueueFails(t *testing.T) {
	f := newGenerationFixture()
	f.tasks.enqueueErr = errors.New("stream down")

	image, err := f.svc.Start(context.Background(), models.User{ID: "u1"}, "fx1")

	require.NoError(t, err)
	stored, err := f.images.GetByID(context.Background(), image.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusPending, stored.Status)
}

func TestCancelPendingMarksCancelledImmediately(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusPending)

	success, err := f.svc.Cancel(context.Background(), "u1", "img1")

	require.NoError(t, err)
	assert.True(t, success)
	assert.Contains(t, f.tasks.cancelled, "task1")

	stored, _ := f.images.GetByID(context.Background(), "img1")
	assert.Equal(t, models.GenerationStatusCancelled, stored.Status)
}

func TestCancelProcessingOnlyRaisesFlag(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusProcessing)

	success, err := f.svc.Cancel(context.Background(), "u1", "img1")

	require.NoError(t, err)
	assert.True(t, success)
	assert.Contains(t, f.tasks.cancelled, "task1")

	stored, _ := f.images.GetByID(context.Background(), "img1")
	assert.Equal(t, models.GenerationStatusProcessing, stored.Status)
}

func TestCancelRejectsTerminalStatus(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusCompleted)

	_, err := f.svc.Cancel(context.Background(), "u1", "img1")

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryRejectsNonFailedStatus(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusCompleted)

	_, err := f.svc.Retry(context.Background(), "u1", "img1")

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryResetsAndReEnqueues(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusFailed)

	success, err := f.svc.Retry(context.Background(), "u1", "img1")

	require.NoError(t, err)
	assert.True(t, success)
	assert.Contains(t, f.tasks.cleared, "task1")
	require.Len(t, f.tasks.enqueued, 1)
	assert.Equal(t, "task1", f.tasks.enqueued[0].TaskID)

	stored, _ := f.images.GetByID(context.Background(), "img1")
	assert.Equal(t, models.GenerationStatusPending, stored.Status)
}

func TestRetrySucceedsWhenReEnqueueFails(t *testing.T) {
	// Once the record is back to pending the retry has taken effect; a lost
	// stream message is recovered by the stalled-task requeue, so the client
	// must not be told the command failed.
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusFailed)
	f.tasks.enqueueErr = errors.New("stream down")

	success, err := f.svc.Retry(context.Background(), "u1", "img1")

	require.NoError(t, err)
	assert.True(t, success)

	stored, _ := f.images.GetByID(context.Background(), "img1")
	assert.Equal(t, models.GenerationStatusPending, stored.Status)
}

func TestCommandsRequireOwnership(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusFailed)

	_, err := f.svc.Retry(context.Background(), "someone-else", "img1")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Cancel(context.Background(), "someone-else", "img1")
	assert.ErrorIs(t, err, ErrNotOwner)

	err = f.svc.Delete(context.Background(), "someone-else", "img1")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestDownloadGuardedToCompleted(t *testing.T) {
	f := newGenerationFixture()
	seedImage(f, models.GenerationStatusProcessing)

	_, err := f.svc.Download(context.Background(), "u1", "img1")

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDownloadVerifiesSignatureAndStreams(t *testing.T) {
	f := newGenerationFixture()
	image := seedImage(f, models.GenerationStatusCompleted)
	url := "https://cdn.example.com/r/img1.png"
	image.URL = &url
	image.Bucket = "renders"
	image.ObjectKey = "2026/08/24/img1.png"
	image.Signature = security.SignResource("sig-secret", image.ID, image.ObjectKey)
	f.images.images[image.ID] = image

	result, err := f.svc.Download(context.Background(), "u1", "img1")

	require.NoError(t, err)
	defer result.Reader.Close()
	assert.Equal(t, "image/png", result.ContentType)
	assert.Equal(t, int64(len("png-bytes")), result.Size)

	data, err := io.ReadAll(result.Reader)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestDownloadRejectsTamperedSignature(t *testing.T) {
	f := newGenerationFixture()
	image := seedImage(f, models.GenerationStatusCompleted)
	url := "https://cdn.example.com/r/img1.png"
	image.URL = &url
	image.ObjectKey = "2026/08/24/img1.png"
	image.Signature = []byte("forged")
	f.images.images[image.ID] = image

	_, err := f.svc.Download(context.Background(), "u1", "img1")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteRaisesCancelFlagForInFlightRecords(t *testing.T) {
	f := newGenerationFixture()
	image := seedImage(f, models.GenerationStatusProcessing)
	image.ObjectKey = "partial.png"
	f.images.images[image.ID] = image

	err := f.svc.Delete(context.Background(), "u1", "img1")

	require.NoError(t, err)
	assert.Contains(t, f.tasks.cancelled, "task1")
	assert.Contains(t, f.store.removed, "partial.png")

	_, err = f.images.GetByID(context.Background(), "img1")
	assert.ErrorIs(t, err, repository.ErrImageNotFound)
}
