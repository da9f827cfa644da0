package citystore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the business layer behind the store's HTTP API.
type Service interface {
	ListCities(ctx context.Context) ([]types.City, error)
	GetCity(ctx context.Context, id types.CityID) (*types.City, error)
	CreateCity(ctx context.Context, city types.NewCity) (*types.City, error)
	DeleteCity(ctx context.Context, id types.CityID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	cache  *cache.Cache
}

// NewCityStoreService caches single-city reads for ttl.
func NewCityStoreService(repo Repository, ttl time.Duration, logger *slog.Logger) *ServiceImpl {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func cityCacheKey(id types.CityID) string {
	return "city:" + id.String()
}

// ListCities retrieves all cities from the repository
func (s *ServiceImpl) ListCities(ctx context.Context) ([]types.City, error) {
	ctx, span := otel.Tracer("CityStoreService").Start(ctx, "ListCities")
	defer span.End()

	l := s.logger.With(slog.String("method", "ListCities"))

	cities, err := s.repo.ListCities(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to retrieve cities from repository", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		return nil, fmt.Errorf("failed to retrieve cities: %w", err)
	}

	l.DebugContext(ctx, "Successfully retrieved cities", slog.Int("count", len(cities)))
	span.SetAttributes(attribute.Int("cities.count", len(cities)))
	span.SetStatus(codes.Ok, "Cities retrieved successfully")
	return cities, nil
}

func (s *ServiceImpl) GetCity(ctx context.Context, id types.CityID) (*types.City, error) {
	ctx, span := otel.Tracer("CityStoreService").Start(ctx, "GetCity", trace.WithAttributes(
		attribute.String("city.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "GetCity"), slog.String("cityID", id.String()))

	key := cityCacheKey(id)
	span.SetAttributes(attribute.String("cache.key", key))
	if cached, found := s.cache.Get(key); found {
		if c, ok := cached.(types.City); ok {
			l.DebugContext(ctx, "Serving city from cache")
			return &c, nil
		}
	}

	c, err := s.repo.GetCity(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Failed to get city", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		return nil, fmt.Errorf("failed to get city: %w", err)
	}

	s.cache.Set(key, *c, cache.DefaultExpiration)
	span.SetStatus(codes.Ok, "City retrieved")
	return c, nil
}

func (s *ServiceImpl) CreateCity(ctx context.Context, city types.NewCity) (*types.City, error) {
	ctx, span := otel.Tracer("CityStoreService").Start(ctx, "CreateCity", trace.WithAttributes(
		attribute.String("city.name", city.CityName),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateCity"), slog.String("cityName", city.CityName))

	if err := city.Validate(); err != nil {
		l.InfoContext(ctx, "Rejected invalid city", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid city")
		return nil, err
	}

	created, err := s.repo.CreateCity(ctx, city)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create city", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		return nil, fmt.Errorf("failed to create city: %w", err)
	}

	s.cache.Set(cityCacheKey(created.ID), *created, cache.DefaultExpiration)
	l.InfoContext(ctx, "City created", slog.String("cityID", created.ID.String()))
	span.SetStatus(codes.Ok, "City created")
	return created, nil
}

func (s *ServiceImpl) DeleteCity(ctx context.Context, id types.CityID) error {
	ctx, span := otel.Tracer("CityStoreService").Start(ctx, "DeleteCity", trace.WithAttributes(
		attribute.String("city.id", id.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteCity"), slog.String("cityID", id.String()))

	s.cache.Delete(cityCacheKey(id))
	if err := s.repo.DeleteCity(ctx, id); err != nil {
		l.WarnContext(ctx, "Failed to delete city", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		return fmt.Errorf("failed to delete city: %w", err)
	}
	// a read racing the delete may have cached the row again
	s.cache.Delete(cityCacheKey(id))

	l.InfoContext(ctx, "City deleted")
	span.SetStatus(codes.Ok, "City deleted")
	return nil
}
