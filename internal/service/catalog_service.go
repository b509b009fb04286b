package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"prismfx/internal/catalog"
	"prismfx/internal/ids"
	"prismfx/internal/models"
	"prismfx/internal/repository"
)

const (
	effectsCacheKey = "effects:all"
	effectsCacheTTL = 5 * time.Minute
)

type CatalogService struct {
	effects *repository.EffectRepository
	cache   *redis.Client
	log     zerolog.Logger
}

func NewCatalogService(effects *repository.EffectRepository, cache *redis.Client, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		effects: effects,
		cache:   cache,
		log:     log,
	}
}

// List applies the filter engine to the full collection. The collection is
// cached whole; filtering is always recomputed so every request reflects
// the caller's current inputs.
func (s *CatalogService) List(ctx context.Context, opts catalog.Options) ([]models.Effect, error) {
	effects, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(effects, opts), nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	effects, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Categories(effects), nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (models.Effect, error) {
	return s.effects.GetByID(ctx, id)
}

// Create adds an effect to the catalog (admin surface) and drops the cache.
func (s *CatalogService) Create(ctx context.Context, effect models.Effect) (models.Effect, error) {
	effect.ID = ids.New()
	if err := s.effects.Create(ctx, effect); err != nil {
		return models.Effect{}, err
	}
	s.invalidate(ctx)
	return effect, nil
}

// Like bumps the effect's gallery counter and drops the cache so the new
// count shows on the next listing.
func (s *CatalogService) Like(ctx context.Context, id string) error {
	if err := s.effects.IncrementLikes(ctx, id, 1); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) collection(ctx context.Context) ([]models.Effect, error) {
	if cached, err := s.cache.Get(ctx, effectsCacheKey).Bytes(); err == nil {
		var effects []models.Effect
		if err := json.Unmarshal(cached, &effects); err == nil {
			return effects, nil
		}
		s.invalidate(ctx)
	}

	effects, err := s.effects.List(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(effects); err == nil {
		if err := s.cache.Set(ctx, effectsCacheKey, payload, effectsCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("cache effects failed")
		}
	}

	return effects, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, effectsCacheKey).Err(); err != nil {
		s.log.Warn().Err(err).Msg("invalidate effects cache failed")
	}
}
