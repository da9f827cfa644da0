package citystore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/loci-cities/internal/types"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps cities in process memory. Used when no database is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	cities []types.City
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{cities: []types.City{}}
}

func (m *MemoryRepository) ListCities(_ context.Context) ([]types.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]types.City{}, m.cities...), nil
}

func (m *MemoryRepository) GetCity(_ context.Context, id types.CityID) (*types.City, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.cities {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, fmt.Errorf("city %s: %w", id, types.ErrNotFound)
}

func (m *MemoryRepository) CreateCity(_ context.Context, city types.NewCity) (*types.City, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := city.WithID(types.CityID(uuid.NewString()))
	m.cities = append(m.cities, created)
	return &created, nil
}

func (m *MemoryRepository) DeleteCity(_ context.Context, id types.CityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.cities {
		if c.ID == id {
			m.cities = append(m.cities[:i:i], m.cities[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("city %s: %w", id, types.ErrNotFound)
}

// LoadSeedFile reads seed cities from a JSON file holding either an array of
// cities or a json-server database object with a "cities" key.
func LoadSeedFile(path string) ([]types.City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var cities []types.City
	if err := json.Unmarshal(data, &cities); err == nil {
		return cities, nil
	}

	var db struct {
		Cities []types.City `json:"cities"`
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	return db.Cities, nil
}

// SeedIfEmpty stores seeds when the repository has no cities yet. Seeds get
// fresh ids. It returns how many cities were stored.
func SeedIfEmpty(ctx context.Context, repo Repository, seeds []types.City, logger *slog.Logger) (int, error) {
	existing, err := repo.ListCities(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing cities: %w", err)
	}
	if len(existing) > 0 {
		logger.InfoContext(ctx, "City store already populated, skipping seed", slog.Int("count", len(existing)))
		return 0, nil
	}

	stored := 0
	for _, c := range seeds {
		seed := types.NewCity{
			CityName: c.CityName,
			Country:  c.Country,
			Emoji:    c.Emoji,
			Date:     c.Date,
			Notes:    c.Notes,
			Position: c.Position,
		}
		if err := seed.Validate(); err != nil {
			logger.WarnContext(ctx, "Skipping invalid seed city", slog.String("cityName", c.CityName), slog.Any("error", err))
			continue
		}
		if _, err := repo.CreateCity(ctx, seed); err != nil {
			return stored, fmt.Errorf("failed to seed city %q: %w", c.CityName, err)
		}
		stored++
	}

	logger.InfoContext(ctx, "City store seeded", slog.Int("count", stored))
	return stored, nil
}
