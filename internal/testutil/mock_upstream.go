// Package testutil provides a fake reservation upstream for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockResponse defines a canned upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable httptest server standing in for the
// reservation API. It counts requests and tracks how many are in flight
// at once so tests can assert on concurrency bounds.
type MockUpstream struct {
	server *httptest.Server

	mu           sync.RWMutex
	handlers     map[string]http.HandlerFunc
	reservations map[string]http.HandlerFunc
	requests     []*http.Request

	requestCount atomic.Int64
	inFlight     atomic.Int64
	maxInFlight  atomic.Int64
}

// NewMockUpstream starts a fake upstream. Close it when done.
func NewMockUpstream() *MockUpstream {
	m := &MockUpstream{
		handlers:     make(map[string]http.HandlerFunc),
		reservations: make(map[string]http.HandlerFunc),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestCount.Add(1)
		current := m.inFlight.Add(1)
		defer m.inFlight.Add(-1)
		for {
			peak := m.maxInFlight.Load()
			if current <= peak || m.maxInFlight.CompareAndSwap(peak, current) {
				break
			}
		}

		m.mu.Lock()
		m.requests = append(m.requests, r.Clone(r.Context()))
		m.mu.Unlock()

		m.mu.RLock()
		var handler http.HandlerFunc
		if r.URL.Path == "/reservations/" {
			handler = m.reservations[r.URL.Query().Get("reservables")]
		}
		if handler == nil {
			handler = m.handlers[r.URL.Path]
		}
		m.mu.RUnlock()

		if handler != nil {
			handler(w, r)
			return
		}
		m.defaultHandler(w, r)
	}))

	return m
}

// URL returns the base URL of the fake upstream.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// SetHandler installs a handler for an exact request path.
func (m *MockUpstream) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse installs a canned response for an exact request path.
func (m *MockUpstream) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.handler())
}

// SetReservations installs a canned /reservations/ response for one
// reservables query value.
func (m *MockUpstream) SetReservations(reservable string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[reservable] = resp.handler()
}

// RequestCount returns the number of requests received.
func (m *MockUpstream) RequestCount() int {
	return int(m.requestCount.Load())
}

// MaxInFlight returns the highest number of concurrently handled requests.
func (m *MockUpstream) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

// Requests returns copies of the received requests in arrival order.
func (m *MockUpstream) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reset clears counters and recorded requests.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.requestCount.Store(0)
	m.maxInFlight.Store(0)
}

func (m *MockUpstream) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("<h1>Not Found</h1>"))
}

func (resp MockResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	}
}

// NewResultsResponse builds a 200 response shaped like the upstream's
// paginated listings: {"count": n, "next": null, "previous": null, "results": [...]}.
func NewResultsResponse(results ...any) MockResponse {
	if results == nil {
		results = []any{}
	}
	body, err := json.Marshal(map[string]any{
		"count":    len(results),
		"next":     nil,
		"previous": nil,
		"results":  results,
	})
	if err != nil {
		panic(err)
	}
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewServerErrorResponse builds a 500 response with a JSON body.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
	}
}

// NewHTMLResponse builds a 200 response that is not JSON.
func NewHTMLResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html><body>maintenance</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewSlowResponse wraps resp so it is only written after delay.
func NewSlowResponse(resp MockResponse, delay time.Duration) MockResponse {
	resp.Delay = delay
	return resp
}
