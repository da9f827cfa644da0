package citystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository persists visited cities.
type Repository interface {
	ListCities(ctx context.Context) ([]types.City, error)
	GetCity(ctx context.Context, id types.CityID) (*types.City, error)
	CreateCity(ctx context.Context, city types.NewCity) (*types.City, error)
	DeleteCity(ctx context.Context, id types.CityID) error
}

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const citiesTable = "visited_cities"

var cityColumns = []string{
	"id::text",
	"city_name",
	"country",
	"emoji",
	"visit_date",
	"notes",
	"lat",
	"lng",
}

type PostgresRepository struct {
	logger *slog.Logger
	db     DBTX
	psql   sq.StatementBuilderType
}

func NewPostgresRepository(db DBTX, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		db:     db,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ListCities returns every city in insertion order.
func (r *PostgresRepository) ListCities(ctx context.Context) ([]types.City, error) {
	ctx, span := otel.Tracer("CityStoreRepository").Start(ctx, "ListCities")
	defer span.End()

	query, args, err := r.psql.Select(cityColumns...).From(citiesTable).OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	cities := make([]types.City, 0)
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan city row: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Row iteration failed")
		return nil, fmt.Errorf("error iterating city rows: %w", err)
	}

	span.SetAttributes(attribute.Int("cities.count", len(cities)))
	span.SetStatus(codes.Ok, "Cities listed")
	return cities, nil
}

// GetCity returns the city with id, or types.ErrNotFound.
func (r *PostgresRepository) GetCity(ctx context.Context, id types.CityID) (*types.City, error) {
	ctx, span := otel.Tracer("CityStoreRepository").Start(ctx, "GetCity", trace.WithAttributes(
		attribute.String("city.id", id.String()),
	))
	defer span.End()

	uid, err := uuid.Parse(id.String())
	if err != nil {
		// ids this store never issued cannot exist
		return nil, fmt.Errorf("city %s: %w", id, types.ErrNotFound)
	}

	query, args, err := r.psql.Select(cityColumns...).From(citiesTable).Where(sq.Eq{"id": uid.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get query: %w", err)
	}

	c, err := scanCity(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("city %s: %w", id, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		return nil, fmt.Errorf("failed to get city %s: %w", id, err)
	}

	span.SetStatus(codes.Ok, "City found")
	return &c, nil
}

// CreateCity inserts city under a fresh uuid.
func (r *PostgresRepository) CreateCity(ctx context.Context, city types.NewCity) (*types.City, error) {
	ctx, span := otel.Tracer("CityStoreRepository").Start(ctx, "CreateCity", trace.WithAttributes(
		attribute.String("city.name", city.CityName),
	))
	defer span.End()

	id := uuid.New()
	query, args, err := r.psql.Insert(citiesTable).
		Columns("id", "city_name", "country", "emoji", "visit_date", "notes", "lat", "lng").
		Values(id.String(), city.CityName, city.Country, city.Emoji, city.Date, city.Notes, city.Position.Lat, city.Position.Lng).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		return nil, fmt.Errorf("failed to insert city: %w", err)
	}

	created := city.WithID(types.CityID(id.String()))
	span.SetAttributes(attribute.String("city.id", id.String()))
	span.SetStatus(codes.Ok, "City created")
	return &created, nil
}

// DeleteCity removes the city with id, or returns types.ErrNotFound.
func (r *PostgresRepository) DeleteCity(ctx context.Context, id types.CityID) error {
	ctx, span := otel.Tracer("CityStoreRepository").Start(ctx, "DeleteCity", trace.WithAttributes(
		attribute.String("city.id", id.String()),
	))
	defer span.End()

	uid, err := uuid.Parse(id.String())
	if err != nil {
		return fmt.Errorf("city %s: %w", id, types.ErrNotFound)
	}

	query, args, err := r.psql.Delete(citiesTable).Where(sq.Eq{"id": uid.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		return fmt.Errorf("failed to delete city %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("city %s: %w", id, types.ErrNotFound)
	}

	span.SetStatus(codes.Ok, "City deleted")
	return nil
}

func scanCity(row pgx.Row) (types.City, error) {
	var (
		c  types.City
		id string
	)
	err := row.Scan(
		&id,
		&c.CityName,
		&c.Country,
		&c.Emoji,
		&c.Date,
		&c.Notes,
		&c.Position.Lat,
		&c.Position.Lng,
	)
	if err != nil {
		return types.City{}, err
	}
	c.ID = types.CityID(id)
	return c, nil
}
