package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/billsync/pkg/clientip"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/pg"
	"github.com/dmitrymomot/billsync/pkg/redis"
	"github.com/dmitrymomot/billsync/pkg/requestid"
	"github.com/dmitrymomot/billsync/pkg/subscription"
	"github.com/dmitrymomot/billsync/pkg/subscription/pgstore"
	"github.com/dmitrymomot/billsync/pkg/subscription/redisstore"
)

// Store drivers selectable with STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

var ErrUnknownStoreDriver = errors.New("unknown store driver")

// AppConfig is the process-level configuration.
type AppConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Name        string `env:"APP_NAME" envDefault:"billsync"`
	ClientURL   string `env:"CLIENT_URL,required"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	PlansFile   string `env:"PLANS_FILE"`

	// TrustedIPHeaders lists proxy headers the client address may be taken from.
	TrustedIPHeaders []string `env:"TRUSTED_IP_HEADERS" envSeparator:","`

	// AutoMigrate applies pending migrations on serve when the postgres driver is used.
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
}

func newLogger(app AppConfig) (*slog.Logger, error) {
	var cfg logger.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	log := logger.New(
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithConfig(cfg),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)
	return log, nil
}

// healthStore is a subscription store the readiness probe can ping.
type healthStore interface {
	subscription.Store
	Healthcheck(ctx context.Context) error
}

// openStore connects the configured backend. The returned close func
// releases its connections.
func openStore(ctx context.Context, app AppConfig, log *slog.Logger) (healthStore, func(), error) {
	switch app.StoreDriver {
	case DriverMemory:
		log.WarnContext(ctx, "using in-memory store, state is lost on restart")
		return subscription.NewMemoryStore(), func() {}, nil

	case DriverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if app.AutoMigrate {
			version, err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations(), log)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			log.InfoContext(ctx, "database schema is up to date", slog.Int64("version", version))
		}
		return pgstore.New(pool), pool.Close, nil

	case DriverRedis:
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		var storeCfg redisstore.Config
		if err := config.Load(&storeCfg); err != nil {
			return nil, nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close redis client", logger.Error(err))
			}
		}
		return redisstore.New(client, redisstore.WithPrefix(storeCfg.Prefix)), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, app.StoreDriver)
	}
}

// loadCatalog reads PLANS_FILE, falling back to the built-in plans.
func loadCatalog(ctx context.Context, app AppConfig) (*subscription.Catalog, error) {
	src := subscription.NewInMemSource(subscription.DefaultPlans()...)
	if app.PlansFile != "" {
		src = subscription.NewYAMLSource(app.PlansFile)
	}
	return subscription.LoadCatalog(ctx, src)
}
