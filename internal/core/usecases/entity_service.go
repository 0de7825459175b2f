package usecases

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/pkg/telemetry"
)

// EntityService reads cab, order and stop snapshots through the cache.
type EntityService struct {
	repo     ports.ViewerRepository
	cache    ports.CacheService
	cacheTTL int
}

// NewEntityService creates a new EntityService. cacheTTL is in seconds; zero
// or a nil cache disables caching.
func NewEntityService(repo ports.ViewerRepository, cache ports.CacheService, cacheTTL int) *EntityService {
	return &EntityService{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

func entitiesKey(kind domain.EntityKind) string { return "entities:" + string(kind) }

// Entities returns the current snapshots of one kind.
func (s *EntityService) Entities(ctx context.Context, kind domain.EntityKind) ([]domain.EntitySnapshot, error) {
	if _, err := domain.ParseEntityKind(string(kind)); err != nil {
		return nil, err
	}
	return readThrough(ctx, s.cache, s.cacheTTL, entitiesKey(kind), "entities", func(ctx context.Context) ([]domain.EntitySnapshot, error) {
		ctx, end := telemetry.StartSpan(ctx, telemetry.SpanFetchEntities, attribute.String("kind", string(kind)))
		entities, err := s.repo.FetchEntities(ctx, kind)
		end(err)
		return entities, err
	})
}

// Invalidate drops the cached snapshots of kind.
func (s *EntityService) Invalidate(ctx context.Context, kind domain.EntityKind) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, entitiesKey(kind))
	}
}
