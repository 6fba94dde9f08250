package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LeJamon/goXRPLdig/internal/cache"
	"github.com/LeJamon/goXRPLdig/internal/config"
	"github.com/LeJamon/goXRPLdig/internal/dig"
	"github.com/LeJamon/goXRPLdig/internal/network"
)

// snapshotCache is the cache surface commands rely on. *cache.Cache and
// *cache.Passthrough both satisfy it.
type snapshotCache interface {
	GetOrFetch(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error)
	Refresh(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error)
	Invalidate(address, networkID string)
	Close() error
}

// stack bundles the wired components every command needs.
type stack struct {
	registry   *network.Registry
	aggregator *dig.Aggregator
	snapshots  snapshotCache
}

// buildRegistry merges configured networks into the built-in table.
func buildRegistry(cfg *config.Config) *network.Registry {
	return network.NewRegistry(cfg.ExtraNetworks()...)
}

// buildStack wires registry, aggregator and cache from the configuration.
func buildStack(cfg *config.Config, log *zap.Logger) (*stack, error) {
	registry := buildRegistry(cfg)

	opts := []dig.Option{
		dig.WithTimeout(cfg.Timeouts.Aggregate),
		dig.WithCallTimeout(cfg.Timeouts.Call),
		dig.WithLogger(log),
	}
	if cfg.Transport == "websocket" {
		opts = append(opts, dig.WithDialer(dig.WSDialer(cfg.Timeouts.Call, log)))
	}
	aggregator := dig.NewAggregator(registry, opts...)

	if !cfg.Cache.Enabled {
		return &stack{
			registry:   registry,
			aggregator: aggregator,
			snapshots:  cache.NewPassthrough(aggregator),
		}, nil
	}

	cacheOpts := []cache.CacheOption{
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(log),
	}
	if cfg.Cache.Path != "" {
		store, err := cache.NewStore(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cache store: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithStore(store))
	}
	snapshots, err := cache.New(aggregator, cfg.Cache.MaxEntries, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}

	return &stack{
		registry:   registry,
		aggregator: aggregator,
		snapshots:  snapshots,
	}, nil
}

func (s *stack) close() error {
	return s.snapshots.Close()
}
