// Package gateway is the HTTP surface of the proxy. It relays single
// lookups to the reservation API, runs bulk reservation fan-outs and
// normalizes every failure into a {"error": "..."} JSON body.
//
// Routes are relative; the server mounts them under /api:
//
//	GET /reservations/                           reservations query
//	GET /reservations/bulk/                      bulk fan-out
//	GET /sets/                                   reservable sets
//	GET /sets/{set}/types/{type}/reservables/    reservables of a set/type
//	GET /reservables/{id}/                       reservable detail
//	GET /classroom-resources/                    classroom resources of a set
//	GET /proxy/*                                 generic passthrough
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Sternrassler/rezervacije-proxy/pkg/cache"
	"github.com/Sternrassler/rezervacije-proxy/pkg/fanout"
	"github.com/Sternrassler/rezervacije-proxy/pkg/logging"
	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DefaultSet is used by the classroom resources route when no set is given.
const DefaultSet = "rezervacije_fri"

// Upstream performs single passthrough lookups. *upstream.Client implements it.
type Upstream interface {
	Get(ctx context.Context, path string, query url.Values) (*upstream.Response, error)
}

// BulkFetcher runs a bulk reservation lookup. *fanout.Scheduler implements it.
type BulkFetcher interface {
	FanOut(ctx context.Context, ids []string, window upstream.TimeWindow) (fanout.BulkResult, error)
}

// ResponseCache stores relayed replies. *cache.Manager implements it.
type ResponseCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Store(ctx context.Context, key cache.CacheKey, statusCode int, body json.RawMessage) error
	Ping(ctx context.Context) error
}

// Handler serves the gateway routes.
type Handler struct {
	upstream Upstream
	bulk     BulkFetcher
	cache    ResponseCache
	logger   zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithCache enables response caching for the cacheable lookups.
func WithCache(c ResponseCache) Option {
	return func(h *Handler) {
		h.cache = c
	}
}

// New creates a Handler. Caching is off unless WithCache is given.
func New(up Upstream, bulk BulkFetcher, opts ...Option) *Handler {
	h := &Handler{
		upstream: up,
		bulk:     bulk,
		logger:   logging.NewLogger("gateway"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/reservations/", h.HandleReservations)
	r.Get("/reservations/bulk/", h.HandleBulkReservations)
	r.Get("/sets/", h.HandleSets)
	r.Get("/sets/{set}/types/{type}/reservables/", h.HandleReservables)
	r.Get("/reservables/{id}/", h.HandleReservable)
	r.Get("/classroom-resources/", h.HandleClassroomResources)
	r.Get("/proxy/*", h.HandleProxy)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// Router assembles the full server: middleware, health probes, metrics and
// the API routes under /api.
func (h *Handler) Router(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog(h.logger))
	r.Use(Recoverer(h.logger))
	r.Use(Metrics)

	r.Get("/healthz", h.HandleHealth)
	r.Get("/readyz", h.HandleReady)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Mount("/api", h.Routes())

	return r
}
