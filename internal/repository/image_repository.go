package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prismfx/internal/models"
)

var ErrImageNotFound = errors.New("generated image not found")

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, image models.GeneratedImage) error {
	const query = `
		INSERT INTO generated_images (
			id, user_id, effect_id, effect_name, task_id, bucket, object_key,
			url, status, progress, error_message, signature, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		image.ID,
		image.UserID,
		image.EffectID,
		image.EffectName,
		image.TaskID,
		image.Bucket,
		image.ObjectKey,
		image.URL,
		image.Status,
		image.Progress,
		image.ErrorMessage,
		image.Signature,
	)
	return err
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.GeneratedImage, error) {
	const query = selectImage + ` WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	image, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GeneratedImage{}, ErrImageNotFound
		}
		return models.GeneratedImage{}, err
	}
	return image, nil
}

func (r *ImageRepository) GetByTaskID(ctx context.Context, taskID string) (models.GeneratedImage, error) {
	const query = selectImage + ` WHERE task_id = $1`

	row := r.pool.QueryRow(ctx, query, taskID)
	image, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GeneratedImage{}, ErrImageNotFound
		}
		return models.GeneratedImage{}, err
	}
	return image, nil
}

// ListByUser returns the user's full library snapshot, newest first.
func (r *ImageRepository) ListByUser(ctx context.Context, userID string) ([]models.GeneratedImage, error) {
	const query = selectImage + `
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *ImageRepository) List(ctx context.Context, limit, offset int) ([]models.GeneratedImage, error) {
	const query = selectImage + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, limit, offset)
}

func (r *ImageRepository) UpdateStatus(ctx context.Context, id string, status models.GenerationStatus, errorMessage *string) error {
	const query = `
		UPDATE generated_images
		SET status = $2,
		    error_message = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, status, errorMessage)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	const query = `
		UPDATE generated_images
		SET progress = LEAST(GREATEST($2, 0), 100),
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, progress)
	return err
}

// MarkCompleted records the rendered object and flips the record to
// completed with full progress in one statement.
func (r *ImageRepository) MarkCompleted(ctx context.Context, id string, bucket, objectKey, url string, signature []byte) error {
	const query = `
		UPDATE generated_images
		SET status = 'completed',
		    progress = 100,
		    error_message = NULL,
		    bucket = $2,
		    object_key = $3,
		    url = $4,
		    signature = $5,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, bucket, objectKey, url, signature)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

// ResetForRetry rewinds a failed record to pending so it can re-enter the
// lifecycle.
func (r *ImageRepository) ResetForRetry(ctx context.Context, id string) error {
	const query = `
		UPDATE generated_images
		SET status = 'pending',
		    progress = 0,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) Remove(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM generated_images WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) ClearByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM generated_images WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// ListStalled returns pending records that have not moved since olderThan;
// the scheduler re-enqueues them.
func (r *ImageRepository) ListStalled(ctx context.Context, olderThan time.Time) ([]models.GeneratedImage, error) {
	const query = selectImage + `
		WHERE status = 'pending' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT 100
	`
	return r.list(ctx, query, olderThan)
}

// PurgeCancelledBefore drops cancelled records older than the cutoff and
// returns how many were removed.
func (r *ImageRepository) PurgeCancelledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM generated_images
		WHERE status = 'cancelled' AND updated_at < $1
	`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

const selectImage = `
	SELECT id, user_id, effect_id, effect_name, task_id, bucket, object_key,
	       url, status, progress, error_message, signature, created_at, updated_at
	FROM generated_images
`

func (r *ImageRepository) list(ctx context.Context, query string, args ...any) ([]models.GeneratedImage, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.GeneratedImage
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func scanImage(row pgx.Row) (models.GeneratedImage, error) {
	var image models.GeneratedImage
	err := row.Scan(
		&image.ID,
		&image.UserID,
		&image.EffectID,
		&image.EffectName,
		&image.TaskID,
		&image.Bucket,
		&image.ObjectKey,
		&image.URL,
		&image.Status,
		&image.Progress,
		&image.ErrorMessage,
		&image.Signature,
		&image.CreatedAt,
		&image.UpdatedAt,
	)
	return image, err
}
