package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mktbiz-byte/cnec-platform/internal/aggregate"
	"github.com/mktbiz-byte/cnec-platform/internal/cache"
	"github.com/mktbiz-byte/cnec-platform/internal/model"
	"github.com/mktbiz-byte/cnec-platform/internal/region"
	"github.com/mktbiz-byte/cnec-platform/internal/storage"
	"github.com/mktbiz-byte/cnec-platform/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cnec.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRegionClients(ctx context.Context) *region.Clients {
	endpoints := make(map[model.Region]region.Endpoint, len(cfg.Regions))
	for name, rc := range cfg.Regions {
		r, err := model.ParseRegion(name)
		if err != nil {
			zap.L().Warn("unknown region in config", zap.String("region", name))
			continue
		}
		endpoints[r] = region.Endpoint{
			DatabaseURL: rc.DatabaseURL,
			MaxConns:    rc.MaxConns,
		}
	}
	return region.NewClients(ctx, endpoints)
}

// initAggregator wires regions, redis and supplement config together.
// The returned cache may be nil when redis is unconfigured.
func initAggregator(ctx context.Context) (*aggregate.Aggregator, *region.Clients, *cache.AggregateCache, error) {
	clients := initRegionClients(ctx)

	aggCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		// A broken redis should not take the platform down.
		zap.L().Warn("cache unavailable, running without it", zap.Error(err))
		aggCache = nil
	}

	opts := aggregate.Options{
		ProfileTable:   cfg.Aggregate.ProfileTable,
		Supplements:    cfg.Aggregate.SupplementSources(),
		SupplementRate: rate.Limit(cfg.Aggregate.SupplementRatePer),
	}
	if aggCache != nil {
		opts.Cache = aggCache
	}

	return aggregate.New(clients, opts), clients, aggCache, nil
}

func initUploader() (storage.Uploader, error) {
	return storage.NewLocal(cfg.Storage.Dir, cfg.Storage.BaseURL)
}
