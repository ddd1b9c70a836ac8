package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/cellcare/cellcare_backend/config"
	"github.com/cellcare/cellcare_backend/internal/repo"
	"github.com/cellcare/cellcare_backend/pkg/database"
	"github.com/cellcare/cellcare_backend/pkg/examdate"
	"github.com/cellcare/cellcare_backend/pkg/observability"
	redispkg "github.com/cellcare/cellcare_backend/pkg/redis"
)

const lockKeyPrefix = "cellcare:assessment:"

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideDatabase),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideLocker),
	fx.Provide(ProvideExamDateClient),
	// Install the telemetry providers before any service records metrics.
	fx.Invoke(func(*observability.Provider) {}),
)

func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config) (*sql.DB, error) {
	db, err := database.OpenFromCentral(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Database.Migrations.AutoMigrate {
				return nil
			}
			n, err := database.Migrate(ctx, db, database.Migrations)
			if err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			slog.Info("database migrated", "applied", n)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return db.Close()
		},
	})
	return db, nil
}

func ProvideStore(db *sql.DB) *repo.PostgresStore {
	return repo.NewPostgresStore(db)
}

// ProvideRedis connects only when the assessment lock is enabled; otherwise
// it provides a nil client.
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*goredis.Client, error) {
	if !cfg.Assessment.Lock.Enabled {
		return nil, nil
	}
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideLocker(rdb *goredis.Client, cfg *config.Config) *redispkg.Locker {
	if rdb == nil {
		return nil
	}
	ttl := time.Duration(cfg.Assessment.Lock.TTLSeconds) * time.Second
	return redispkg.NewLocker(rdb, lockKeyPrefix, ttl)
}

func ProvideExamDateClient(cfg *config.Config) (*examdate.Client, error) {
	return examdate.NewFromCentral(cfg.ExamDate)
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Server.Environment,
		TracingEnabled: cfg.Observability.Tracing.Enabled,
		OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.Tracing.OTLPInsecure,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
