package gateway

import (
	"context"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

// HandleHealth reports that the process is serving.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports whether the dependencies the gateway owns are up.
// Only the cache is checked; the upstream is outside our control.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "cache": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "cache": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "cache": "ok"})
}
