package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Sternrassler/rezervacije-proxy/pkg/fanout"
	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
)

// HandleBulkReservations runs one reservation lookup per reservable and
// returns a single object keyed by reservable ID.
//
// Query: start, end, and reservable_ids[] repeated once per ID
// (reservable_ids without brackets is accepted too).
func (h *Handler) HandleBulkReservations(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Bulk request panicked")
			writeError(w, http.StatusInternalServerError, internalMessage)
		}
	}()

	query := r.URL.Query()
	window := upstream.TimeWindow{
		Start: query.Get("start"),
		End:   query.Get("end"),
	}
	ids := reservableIDs(query["reservable_ids[]"], query["reservable_ids"])

	if err := fanout.Validate(ids, window); err != nil {
		writeError(w, http.StatusBadRequest, missingParameterMessage(err))
		return
	}

	result, err := h.bulk.FanOut(r.Context(), ids, window)
	if err != nil {
		if errors.Is(err, fanout.ErrMissingParameter) {
			writeError(w, http.StatusBadRequest, missingParameterMessage(err))
			return
		}
		h.logger.Error().Err(err).Int("reservables", len(ids)).Msg("Bulk fan-out failed")
		writeError(w, http.StatusInternalServerError, internalMessage)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// reservableIDs joins the bracketed and plain parameter forms, dropping
// blank values. Order and duplicates are kept.
func reservableIDs(lists ...[]string) []string {
	var ids []string
	for _, list := range lists {
		for _, id := range list {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// missingParameterMessage turns "missing required parameter: start" into
// "Missing required parameter: start".
func missingParameterMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
