// Package upstream is the HTTP client for the reservation API the gateway
// sits in front of. Every call is a single GET with format=json, bounded by
// a per-call timeout, and every failure comes back as an *Error carrying a
// Kind so callers can decide how to surface it.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/rezervacije-proxy/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_upstream_requests_total",
		Help: "Upstream requests by endpoint and outcome (HTTP status or error kind)",
	}, []string{"endpoint", "outcome"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reservations_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_upstream_errors_total",
		Help: "Failed upstream calls by error kind",
	}, []string{"kind"})
)

const (
	// DefaultTimeout is the per-call timeout used when none is configured.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent is sent when the config leaves UserAgent empty.
	DefaultUserAgent = "rezervacije-proxy"

	// maxBodyBytes caps how much of an upstream body is read.
	maxBodyBytes = 32 << 20
)

// TimeWindow is the caller-supplied reservation window. Both values are
// forwarded verbatim; the upstream owns their format.
type TimeWindow struct {
	Start string
	End   string
}

// Response is a successfully parsed upstream reply.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the reservation API, e.g. "https://rezervacije.fri.uni-lj.si/api".
	BaseURL string

	// Timeout bounds each call, including reading the body.
	Timeout time.Duration

	// UserAgent header sent upstream.
	UserAgent string

	// HTTPClient overrides the transport (tests, custom TLS). Optional.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for baseURL with the reference
// five second timeout.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client talks to the reservation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", base)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url has no host (got %q)", base)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient,
		config:     cfg,
		logger:     logging.NewLogger("upstream-client"),
	}, nil
}

// BaseURL returns the normalized upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchReservations returns the reservations of one reservable inside window,
// in the order upstream returned them. A missing results field yields an
// empty slice. Non-200 statuses, bad JSON, timeouts and transport failures
// are returned as *Error.
func (c *Client) FetchReservations(ctx context.Context, reservable string, window TimeWindow) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("start", window.Start)
	query.Set("end", window.End)
	query.Set("reservables", reservable)

	status, body, err := c.do(ctx, "reservations/", query)
	if err != nil {
		c.logFailure(err, reservable, window)
		return nil, err
	}

	if status != http.StatusOK {
		upErr := statusError(status)
		c.record("reservations", upErr)
		c.logFailure(upErr, reservable, window)
		return nil, upErr
	}

	var payload struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		upErr := &Error{Kind: KindMalformed, StatusCode: status, Message: "invalid JSON response", Err: err}
		c.record("reservations", upErr)
		c.logFailure(upErr, reservable, window)
		return nil, upErr
	}
	if payload.Results == nil {
		payload.Results = []json.RawMessage{}
	}

	return payload.Results, nil
}

// Get performs one GET against path (relative to the base URL, already
// escaped) with query plus format=json. Any status with a JSON body is
// returned as a Response so callers can relay it. An upstream 404 is always
// returned as an *Error with StatusCode 404 and the body left unparsed,
// because the upstream answers unknown resources with an HTML page.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	endpoint := endpointLabel(path)

	status, body, err := c.do(ctx, path, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Str("path", path).Msg("Upstream request failed")
		return nil, err
	}

	if status == http.StatusNotFound {
		upErr := statusError(status)
		c.record(endpoint, upErr)
		c.logger.Debug().Str("path", path).Msg("Upstream returned 404")
		return nil, upErr
	}

	if !json.Valid(body) {
		upErr := &Error{Kind: KindMalformed, StatusCode: status, Message: "invalid JSON response"}
		c.record(endpoint, upErr)
		c.logger.Warn().Str("endpoint", endpoint).Str("path", path).Int("status", status).Msg("Upstream body is not JSON")
		return nil, upErr
	}

	return &Response{StatusCode: status, Body: body}, nil
}

// do executes the request and reads the body. Only transport-level failures
// are returned as errors; status handling is left to the caller.
func (c *Client) do(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	endpoint := endpointLabel(path)
	started := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	target := c.buildURL(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		upErr := &Error{Kind: KindNetwork, Message: "build request", Err: err}
		c.record(endpoint, upErr)
		return 0, nil, upErr
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().Str("url", target).Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upErr := classifyTransport(err, "request failed")
		c.record(endpoint, upErr)
		return 0, nil, upErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		upErr := classifyTransport(err, "read response body")
		c.record(endpoint, upErr)
		return 0, nil, upErr
	}

	upstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	return resp.StatusCode, body, nil
}

// buildURL joins path onto the base URL and encodes query with format=json.
func (c *Client) buildURL(path string, query url.Values) string {
	params := url.Values{}
	for key, values := range query {
		params[key] = append([]string(nil), values...)
	}
	params.Set("format", "json")

	return c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + params.Encode()
}

func (c *Client) record(endpoint string, err *Error) {
	upstreamErrorsTotal.WithLabelValues(string(err.Kind)).Inc()
	if err.Kind != KindUpstreamStatus {
		upstreamRequestsTotal.WithLabelValues(endpoint, string(err.Kind)).Inc()
	}
}

func (c *Client) logFailure(err error, reservable string, window TimeWindow) {
	c.logger.Warn().
		Err(err).
		Str("kind", string(KindOf(err))).
		Str("reservable", reservable).
		Str("start", window.Start).
		Str("end", window.End).
		Msg("Reservation lookup failed")
}

// PathFor escapes each segment and joins them into a relative upstream path
// with a trailing slash, e.g. PathFor("reservables", "12") == "reservables/12/".
func PathFor(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return strings.Join(escaped, "/") + "/"
}

// endpointLabel keeps metric cardinality bounded by using the first path
// segment only.
func endpointLabel(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "root"
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}
