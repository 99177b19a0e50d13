package fanout

import (
	"encoding/json"
)

// BulkResult maps each requested reservable to its reservations, in
// upstream order. A reservable whose lookup failed maps to an empty list.
type BulkResult map[string][]json.RawMessage

// MarshalJSON writes empty lists as [] rather than null.
func (r BulkResult) MarshalJSON() ([]byte, error) {
	out := make(map[string][]json.RawMessage, len(r))
	for id, records := range r {
		if records == nil {
			records = []json.RawMessage{}
		}
		out[id] = records
	}
	return json.Marshal(out)
}

// outcome is what a worker reports for one task.
type outcome struct {
	id      string
	records []json.RawMessage
	err     error
}

// merger accumulates outcomes. It is owned by a single collector goroutine.
type merger struct {
	result    BulkResult
	succeeded map[string]bool
	failed    int
}

func newMerger(ids []string) *merger {
	m := &merger{
		result:    make(BulkResult, len(ids)),
		succeeded: make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		m.result[id] = []json.RawMessage{}
	}
	return m
}

// add records one outcome. A successful lookup for an id is never replaced
// by a later one (success or failure) for a duplicate of the same id.
func (m *merger) add(o outcome) {
	if o.err != nil {
		m.failed++
		return
	}
	if m.succeeded[o.id] {
		return
	}
	records := o.records
	if records == nil {
		records = []json.RawMessage{}
	}
	m.result[o.id] = records
	m.succeeded[o.id] = true
}
