// Package app wires together configuration, the reports client, the local
// store and the hotspot index into a single Deps struct that commands
// receive at runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/derickschaefer/challan/internal/config"
	"github.com/derickschaefer/challan/internal/dashboard"
	"github.com/derickschaefer/challan/internal/geoindex"
	"github.com/derickschaefer/challan/internal/reports"
	"github.com/derickschaefer/challan/internal/store"
	"github.com/derickschaefer/challan/internal/timerange"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store and Index are opened on demand by RequireStore and RequireIndex.
type Deps struct {
	Config *config.Config
	Client *reports.Client
	Clock  timerange.Clock
	Store  *store.Store
	Index  *geoindex.Index

	redis *geoindex.RedisClient
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	client := reports.NewClient(
		cfg.APIToken,
		cfg.BaseURL,
		cfg.Timeout,
		cfg.Rate,
	)
	return &Deps{
		Config: cfg,
		Client: client,
		Clock:  timerange.SystemClock{},
	}
}

// RequireStore opens the bbolt store at Config.DBPath if not already open.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return err
	}
	d.Store = s
	return nil
}

// RequireIndex connects the hotspot index. Without a configured Redis
// address an in-memory index is used, which lives only as long as the
// process.
func (d *Deps) RequireIndex(ctx context.Context) error {
	if d.Index != nil {
		return nil
	}
	if d.Config.RedisAddr == "" {
		slog.Info("geo index: no redis address configured, using in-memory index")
		d.Index = geoindex.New(geoindex.NewMemoryClient())
		return nil
	}
	rc := geoindex.NewRedisClient(d.Config.RedisAddr, "", 0)
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return fmt.Errorf("connecting to redis at %s: %w", d.Config.RedisAddr, err)
	}
	d.redis = rc
	d.Index = geoindex.New(rc)
	return nil
}

// Dashboard loads the configured layout. ok is false when none is
// configured.
func (d *Deps) Dashboard() (layout *dashboard.Layout, ok bool, err error) {
	if d.Config.DashboardPath == "" {
		return nil, false, nil
	}
	l, err := dashboard.Load(d.Config.DashboardPath)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// Close releases the store and the Redis connection, if open.
func (d *Deps) Close() {
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
		d.Store = nil
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
		d.redis = nil
	}
}
