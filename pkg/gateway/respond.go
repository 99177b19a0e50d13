package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
)

const (
	contentTypeJSON = "application/json"

	invalidJSONMessage = "Invalid JSON response"
	internalMessage    = "Internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorBody{Error: message})
}

// writeRaw relays an upstream JSON body verbatim.
func writeRaw(w http.ResponseWriter, code int, body json.RawMessage) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

// writeUpstreamError maps a failed upstream call to the caller-facing shape.
// notFound is the message used for an upstream 404; when empty the upstream
// status text is used instead.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var upErr *upstream.Error
	if !errors.As(err, &upErr) {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Unexpected passthrough failure")
		writeError(w, http.StatusInternalServerError, internalMessage)
		return
	}

	switch {
	case upstream.IsNotFound(err):
		if notFound == "" {
			notFound = upErr.Message
		}
		writeError(w, http.StatusNotFound, notFound)
	case upErr.Kind == upstream.KindMalformed:
		writeError(w, http.StatusInternalServerError, invalidJSONMessage)
	case upErr.Kind == upstream.KindUpstreamStatus:
		writeError(w, upErr.StatusCode, upErr.Message)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
