package gateway

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/rezervacije-proxy/pkg/cache"
	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
	"github.com/go-chi/chi/v5"
)

// route describes one passthrough lookup.
type route struct {
	path      string
	query     url.Values
	cacheable bool
	// notFound replaces the upstream 404 message; empty relays it as is.
	notFound string
}

// HandleReservations relays a reservations query. Only non-empty start, end
// and reservables values are forwarded.
func (h *Handler) HandleReservations(w http.ResponseWriter, r *http.Request) {
	query := url.Values{}
	for _, name := range []string{"start", "end", "reservables"} {
		if v := r.URL.Query().Get(name); v != "" {
			query.Set(name, v)
		}
	}

	h.relay(w, r, route{path: "reservations/", query: query})
}

// HandleSets relays the list of reservable sets.
func (h *Handler) HandleSets(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, route{path: "sets/", cacheable: true})
}

// HandleReservables relays the reservables of one set and type.
func (h *Handler) HandleReservables(w http.ResponseWriter, r *http.Request) {
	set := chi.URLParam(r, "set")
	typ := chi.URLParam(r, "type")

	h.relay(w, r, route{
		path:      upstream.PathFor("sets", set, "types", typ, "reservables"),
		cacheable: true,
		notFound:  "Reservables not found",
	})
}

// HandleReservable relays the detail of one reservable.
func (h *Handler) HandleReservable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.relay(w, r, route{
		path:      upstream.PathFor("reservables", id),
		cacheable: true,
		notFound:  "Reservable not found",
	})
}

// HandleClassroomResources relays the classroom resources of a set,
// defaulting to DefaultSet.
func (h *Handler) HandleClassroomResources(w http.ResponseWriter, r *http.Request) {
	set := r.URL.Query().Get("set")
	if set == "" {
		set = DefaultSet
	}

	// The upstream serves this collection without a trailing slash.
	path := strings.TrimSuffix(upstream.PathFor("sets", set, "types", "classroom", "reservable_resources"), "/")

	h.relay(w, r, route{
		path:      path,
		cacheable: true,
		notFound:  "Classroom resources not found",
	})
}

// HandleProxy forwards any path under /proxy/ with its query to the
// upstream, keeping the path separators and adding a trailing slash.
func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	var segments []string
	for _, segment := range strings.Split(chi.URLParam(r, "*"), "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) == 0 {
		writeError(w, http.StatusBadRequest, "Missing proxy path")
		return
	}

	query := r.URL.Query()
	query.Del("format")

	h.relay(w, r, route{
		path:     upstream.PathFor(segments...),
		query:    query,
		notFound: "Resource not found",
	})
}

// relay performs one upstream GET and writes its JSON body with the upstream
// status. Cacheable routes consult the cache first and store 200 replies.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, rt route) {
	ctx := r.Context()
	key := cache.CacheKey{Endpoint: rt.path, QueryParams: rt.query}
	useCache := rt.cacheable && h.cache != nil

	if useCache {
		entry, err := h.cache.Get(ctx, key)
		switch {
		case err == nil:
			h.logger.Debug().Str("key", key.String()).Msg("Cache hit")
			w.Header().Set("X-Cache", "HIT")
			writeRaw(w, entry.StatusCode, entry.Data)
			return
		case errors.Is(err, cache.ErrCacheMiss):
			h.logger.Debug().Str("key", key.String()).Msg("Cache miss")
		default:
			h.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed - falling back to upstream")
		}
		w.Header().Set("X-Cache", "MISS")
	}

	resp, err := h.upstream.Get(ctx, rt.path, rt.query)
	if err != nil {
		h.writeUpstreamError(w, r, err, rt.notFound)
		return
	}

	if useCache && resp.StatusCode == http.StatusOK {
		if err := h.cache.Store(ctx, key, resp.StatusCode, resp.Body); err != nil {
			h.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
		}
	}

	writeRaw(w, resp.StatusCode, resp.Body)
}
