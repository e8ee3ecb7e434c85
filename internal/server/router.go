// Package server exposes the range, bucketing, geo and heat operations over
// HTTP with gorilla/mux.
package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const headerRequestID = "X-Request-ID"

// Router binds Handler methods to routes on a mux.Router.
type Router struct {
	handler *Handler
	router  *mux.Router
}

// NewRouter creates a router with the app's routes.
func NewRouter(handler *Handler, router *mux.Router) *Router {
	return &Router{
		handler: handler,
		router:  router,
	}
}

// RegisterRoutes adds every endpoint to the underlying mux.Router.
func (r *Router) RegisterRoutes() {
	r.router.Use(requestID)

	r.router.HandleFunc("/v1/ranges/resolve", r.handler.ResolveRanges).Methods(http.MethodPost)
	r.router.HandleFunc("/v1/ranges/effective", r.handler.EffectiveRange).Methods(http.MethodPost)
	r.router.HandleFunc("/v1/buckets", r.handler.Buckets).Methods(http.MethodPost)
	r.router.HandleFunc("/v1/geo/normalize", r.handler.NormalizeGeo).Methods(http.MethodPost)
	// expects ?max={float}&zoom={float}; max omitted when there is no data
	r.router.HandleFunc("/v1/heat/scale", r.handler.HeatScale).Methods(http.MethodGet)
	// expects ?scope={id}&lat={float}&lng={float}&radius={km}
	r.router.HandleFunc("/v1/hotspots/nearby", r.handler.NearbyHotspots).Methods(http.MethodGet)

	r.router.HandleFunc("/ping", r.handler.Ping).Methods(http.MethodGet)
}

// Handler returns the routed handler wrapped with CORS. origins defaults to
// any origin when empty.
func (r *Router) Handler(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerRequestID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	})
	return c.Handler(r.router)
}

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)
		slog.Debug("server: request", "method", req.Method, "path", req.URL.Path, "request_id", id)
		next.ServeHTTP(w, req)
	})
}
