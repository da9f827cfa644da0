package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/loci-cities/internal/domain/citystore"
	"github.com/FACorreiaa/loci-cities/pkg/config"
	"github.com/FACorreiaa/loci-cities/pkg/db"
	"github.com/FACorreiaa/loci-cities/pkg/observability"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *observability.HTTPMetrics

	// Repositories
	CityRepo citystore.Repository

	// Services
	CityService citystore.Service

	// Handlers
	CityHandler *citystore.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	deps.initServices()
	deps.initHandlers()
	deps.initMetrics()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase connects and migrates when a database is configured
func (d *Dependencies) initDatabase() error {
	if !d.Config.Database.Enabled() {
		d.Logger.Warn("no database configured, cities are kept in memory")
		return nil
	}

	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories picks the city repository and applies the seed file
func (d *Dependencies) initRepositories(ctx context.Context) error {
	if d.DB != nil {
		d.CityRepo = citystore.NewPostgresRepository(d.DB.Pool, d.Logger)
	} else {
		d.CityRepo = citystore.NewMemoryRepository()
	}

	if d.Config.SeedFile != "" {
		seeds, err := citystore.LoadSeedFile(d.Config.SeedFile)
		if err != nil {
			return err
		}
		if _, err := citystore.SeedIfEmpty(ctx, d.CityRepo, seeds, d.Logger); err != nil {
			return err
		}
	}

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() {
	d.CityService = citystore.NewCityStoreService(d.CityRepo, d.Config.Cache.TTL, d.Logger)
	d.Logger.Info("services initialized")
}

func (d *Dependencies) initHandlers() {
	d.CityHandler = citystore.NewHandler(d.CityService, d.Logger)
	d.Logger.Info("handlers initialized")
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = observability.NewHTTPMetrics(d.Registry)
}

// Health reports whether the backing store is reachable.
func (d *Dependencies) Health() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Health()
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
