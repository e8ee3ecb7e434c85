package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/geoindex"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/server"
	"github.com/derickschaefer/challan/internal/store"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the range, bucketing and heatmap operations over HTTP",
	Long: `Starts a JSON HTTP API exposing the same operations as the CLI:

  POST /v1/ranges/resolve       concrete windows for relative tokens
  POST /v1/ranges/effective     global/local range selection for a scope
  POST /v1/buckets              aggregate raw records (?granularity=week)
  POST /v1/geo/normalize        validate and dedupe points (?zoom= adds intensity)
  GET  /v1/heat/scale           intensity ceiling (?max=&zoom=)
  GET  /v1/hotspots/nearby      indexed hotspots (?scope=&lat=&lng=&radius=)
  GET  /ping

Hotspots are looked up in Redis when redis_addr is configured (fill it with
'challan geo index'). Otherwise an in-memory index is loaded at startup with
the hotspots of the latest stored geo batch of every scope, as written by
'challan fetch'. Every response carries X-Request-ID.
The server shuts down gracefully on SIGINT or SIGTERM.`,
	Example: `  challan serve
  challan serve --listen 127.0.0.1:9090
  CHALLAN_REDIS_ADDR=localhost:6379 challan serve --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := deps.RequireIndex(ctx); err != nil {
			return err
		}
		if deps.Config.RedisAddr == "" {
			if err := deps.RequireStore(); err != nil {
				return err
			}
			n, err := loadHotspots(ctx, deps.Store, deps.Index)
			if err != nil {
				return err
			}
			slog.Info("serve: loaded stored hotspots", "hotspots", n)
		}

		addr := deps.Config.ListenAddr
		if serveListen != "" {
			addr = serveListen
		}

		h := server.NewHandler(deps.Index)
		h.Clock = deps.Clock
		srv := server.New(addr, server.NewRouter(h, mux.NewRouter()), deps.Config.CORSOrigins)
		return srv.Run(ctx)
	},
}

// loadHotspots indexes the hotspots of the latest stored geo batch of each
// scope, replacing whatever the index held for that scope.
func loadHotspots(ctx context.Context, st *store.Store, ix *geoindex.Index) (int, error) {
	batches, err := st.ListBatches("")
	if err != nil {
		return 0, fmt.Errorf("reading store: %w", err)
	}
	latest := make(map[string]store.Batch)
	for _, b := range batches {
		if b.Kind != model.KindGeo {
			continue
		}
		if cur, ok := latest[b.Scope]; !ok || b.FetchedAt.After(cur.FetchedAt) {
			latest[b.Scope] = b
		}
	}
	scopes := make([]string, 0, len(latest))
	for scope := range latest {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	total := 0
	for _, scope := range scopes {
		set := geo.Normalize(latest[scope].GeoStats)
		n, err := indexHotspots(ctx, ix, scope, set.Hotspots, true)
		if err != nil {
			return total, fmt.Errorf("indexing scope %s: %w", scope, err)
		}
		total += n
	}
	return total, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: listen_addr or :8080)")
}
