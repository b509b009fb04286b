package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prismfx/internal/models"
)

var ErrEffectNotFound = errors.New("effect not found")

type EffectRepository struct {
	pool *pgxpool.Pool
}

func NewEffectRepository(pool *pgxpool.Pool) *EffectRepository {
	return &EffectRepository{pool: pool}
}

func (r *EffectRepository) Create(ctx context.Context, effect models.Effect) error {
	const query = `
		INSERT INTO effects (
			id, name, description, tags, category, difficulty, prompt_tmpl,
			preview_url, likes_count, is_trending, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		effect.ID,
		effect.Name,
		effect.Description,
		effect.Tags,
		effect.Category,
		effect.Difficulty,
		effect.PromptTmpl,
		effect.PreviewURL,
		effect.LikesCount,
		effect.IsTrending,
	)
	return err
}

func (r *EffectRepository) GetByID(ctx context.Context, id string) (models.Effect, error) {
	const query = `
		SELECT id, name, description, tags, category, difficulty, prompt_tmpl,
		       preview_url, likes_count, is_trending, created_at, updated_at
		FROM effects WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	effect, err := scanEffect(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Effect{}, ErrEffectNotFound
		}
		return models.Effect{}, err
	}
	return effect, nil
}

// List returns the full effect collection; filtering and sorting happen in
// the catalog engine over the in-memory collection.
func (r *EffectRepository) List(ctx context.Context) ([]models.Effect, error) {
	const query = `
		SELECT id, name, description, tags, category, difficulty, prompt_tmpl,
		       preview_url, likes_count, is_trending, created_at, updated_at
		FROM effects
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var effects []models.Effect
	for rows.Next() {
		effect, err := scanEffect(rows)
		if err != nil {
			return nil, err
		}
		effects = append(effects, effect)
	}
	return effects, rows.Err()
}

func (r *EffectRepository) IncrementLikes(ctx context.Context, id string, delta int) error {
	const query = `
		UPDATE effects
		SET likes_count = GREATEST(likes_count + $2, 0),
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEffectNotFound
	}
	return nil
}

func scanEffect(row pgx.Row) (models.Effect, error) {
	var effect models.Effect
	err := row.Scan(
		&effect.ID,
		&effect.Name,
		&effect.Description,
		&effect.Tags,
		&effect.Category,
		&effect.Difficulty,
		&effect.PromptTmpl,
		&effect.PreviewURL,
		&effect.LikesCount,
		&effect.IsTrending,
		&effect.CreatedAt,
		&effect.UpdatedAt,
	)
	return effect, err
}
