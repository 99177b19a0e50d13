package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/rezervacije-proxy/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockUpstream, timeout time.Duration) *Client {
	t.Helper()

	cfg := DefaultConfig(mock.URL())
	cfg.Timeout = timeout
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("https://rezervacije.example.org/api"),
		},
		{
			name:     "empty base url",
			config:   Config{},
			errorMsg: "base url is required",
		},
		{
			name:     "unsupported scheme",
			config:   Config{BaseURL: "ftp://example.org"},
			errorMsg: `base url must be http or https (got "ftp://example.org")`,
		},
		{
			name:     "missing host",
			config:   Config{BaseURL: "http://"},
			errorMsg: `base url has no host (got "http://")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Client is nil")
			}
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	client, err := New(Config{BaseURL: "http://upstream.local/api/"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if client.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.config.Timeout, DefaultTimeout)
	}
	if client.config.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", client.config.UserAgent, DefaultUserAgent)
	}
	if client.BaseURL() != "http://upstream.local/api" {
		t.Errorf("BaseURL() = %q, want trailing slash trimmed", client.BaseURL())
	}
}

func TestFetchReservations_Success(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetReservations("17", testutil.NewResultsResponse(
		map[string]any{"id": 1, "title": "Algorithms"},
		map[string]any{"id": 2, "title": "Databases"},
	))

	client := newTestClient(t, mock, time.Second)
	window := TimeWindow{Start: "2024-10-14T00:00:00", End: "2024-10-21T00:00:00"}

	records, err := client.FetchReservations(context.Background(), "17", window)
	if err != nil {
		t.Fatalf("FetchReservations() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	var first struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(records[0], &first); err != nil {
		t.Fatalf("unmarshal first record: %v", err)
	}
	if first.ID != 1 {
		t.Errorf("first record id = %d, want 1 (upstream order must be kept)", first.ID)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("upstream saw %d requests, want 1", len(reqs))
	}
	q := reqs[0].URL.Query()
	expected := map[string]string{
		"format":      "json",
		"start":       window.Start,
		"end":         window.End,
		"reservables": "17",
	}
	for key, want := range expected {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
	if ua := reqs[0].Header.Get("User-Agent"); ua != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
	}
}

func TestFetchReservations_EncodesQueryValues(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	tricky := "5&reservables=6"
	mock.SetReservations(tricky, testutil.NewResultsResponse())

	client := newTestClient(t, mock, time.Second)
	window := TimeWindow{Start: "2024-10-14T08:00:00+02:00", End: "2024-10-14 20:00"}

	if _, err := client.FetchReservations(context.Background(), tricky, window); err != nil {
		t.Fatalf("FetchReservations() failed: %v", err)
	}

	q := mock.Requests()[0].URL.Query()
	if got := q["reservables"]; len(got) != 1 || got[0] != tricky {
		t.Errorf("reservables = %v, want single value %q", got, tricky)
	}
	if got := q.Get("start"); got != window.Start {
		t.Errorf("start = %q, want %q ('+' must survive encoding)", got, window.Start)
	}
	if got := q.Get("end"); got != window.End {
		t.Errorf("end = %q, want %q", got, window.End)
	}
}

func TestFetchReservations_MissingResultsIsEmpty(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetReservations("3", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"count": 0}`})

	client := newTestClient(t, mock, time.Second)
	records, err := client.FetchReservations(context.Background(), "3", TimeWindow{Start: "a", End: "b"})
	if err != nil {
		t.Fatalf("FetchReservations() failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("records = %#v, want empty non-nil slice", records)
	}
}

func TestFetchReservations_ErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantKind   Kind
		wantStatus int
	}{
		{
			name:       "server error",
			response:   testutil.NewServerErrorResponse(),
			wantKind:   KindUpstreamStatus,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "bad request",
			response:   testutil.MockResponse{StatusCode: http.StatusBadRequest, Body: `{"start": ["invalid"]}`},
			wantKind:   KindUpstreamStatus,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "html body",
			response:   testutil.NewHTMLResponse(),
			wantKind:   KindMalformed,
			wantStatus: http.StatusOK,
		},
		{
			name:     "timeout",
			response: testutil.NewSlowResponse(testutil.NewResultsResponse(), 500*time.Millisecond),
			wantKind: KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockUpstream()
			defer mock.Close()
			mock.SetReservations("9", tt.response)

			client := newTestClient(t, mock, 100*time.Millisecond)
			records, err := client.FetchReservations(context.Background(), "9", TimeWindow{Start: "a", End: "b"})
			if err == nil {
				t.Fatalf("expected error, got records %v", records)
			}

			var upErr *Error
			if !errors.As(err, &upErr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if upErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", upErr.Kind, tt.wantKind)
			}
			if upErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", upErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestFetchReservations_NetworkError(t *testing.T) {
	mock := testutil.NewMockUpstream()
	baseURL := mock.URL()
	mock.Close()

	client, err := New(DefaultConfig(baseURL))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = client.FetchReservations(context.Background(), "1", TimeWindow{Start: "a", End: "b"})
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindNetwork, err)
	}
}

func TestGet_RelaysStatusAndBody(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/sets/", testutil.MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"detail": "forbidden"}`,
	})

	client := newTestClient(t, mock, time.Second)
	resp, err := client.Get(context.Background(), "sets/", nil)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	if string(resp.Body) != `{"detail": "forbidden"}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if got := mock.Requests()[0].URL.Query().Get("format"); got != "json" {
		t.Errorf("format = %q, want json", got)
	}
}

func TestGet_NotFoundIsError(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	client := newTestClient(t, mock, time.Second)
	_, err := client.Get(context.Background(), PathFor("reservables", "404"), url.Values{})
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestGet_MalformedBody(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/sets/", testutil.NewHTMLResponse())

	client := newTestClient(t, mock, time.Second)
	_, err := client.Get(context.Background(), "sets/", nil)
	if KindOf(err) != KindMalformed {
		t.Errorf("KindOf(err) = %q, want %q", KindOf(err), KindMalformed)
	}
}

func TestGet_ForwardsQuery(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/reservations/", testutil.NewResultsResponse())

	client := newTestClient(t, mock, time.Second)
	query := url.Values{"start": {"2024-01-01"}, "format": {"api"}}
	if _, err := client.Get(context.Background(), "reservations/", query); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	q := mock.Requests()[0].URL.Query()
	if q.Get("start") != "2024-01-01" {
		t.Errorf("start = %q", q.Get("start"))
	}
	if got := q["format"]; len(got) != 1 || got[0] != "json" {
		t.Errorf("format = %v, want [json]", got)
	}
	if query.Get("format") != "api" {
		t.Error("Get() must not mutate the caller's query")
	}
}

func TestPathFor(t *testing.T) {
	tests := []struct {
		segments []string
		want     string
	}{
		{[]string{"sets"}, "sets/"},
		{[]string{"reservables", "12"}, "reservables/12/"},
		{[]string{"sets", "a b", "types", "x/y", "reservables"}, "sets/a%20b/types/x%2Fy/reservables/"},
	}

	for _, tt := range tests {
		if got := PathFor(tt.segments...); got != tt.want {
			t.Errorf("PathFor(%q) = %q, want %q", tt.segments, got, tt.want)
		}
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"":                             "root",
		"/":                            "root",
		"sets/":                        "sets",
		"reservables/12/":              "reservables",
		"/sets/x/types/classroom/foo/": "sets",
	}

	for path, want := range tests {
		if got := endpointLabel(path); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
