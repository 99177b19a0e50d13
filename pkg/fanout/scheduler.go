// Package fanout runs one reservation lookup per reservable through a
// bounded worker pool and merges the answers into a single BulkResult.
//
// A failed lookup never fails the batch: the reservable is reported with an
// empty list and the failure is logged. The only error FanOut returns is
// ErrMissingParameter, raised before any upstream call is made.
//
// Example usage:
//
//	client, _ := upstream.New(upstream.DefaultConfig(baseURL))
//	scheduler := fanout.New(client, fanout.DefaultConfig())
//	result, err := scheduler.FanOut(ctx, []string{"12", "15"}, upstream.TimeWindow{Start: s, End: e})
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/rezervacije-proxy/pkg/logging"
	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	bulkRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_bulk_requests_total",
		Help: "Total bulk fan-out requests that passed validation",
	})

	bulkIDs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservations_bulk_ids",
		Help:    "Number of reservable identifiers per bulk request",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})

	bulkTaskFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_bulk_task_failures_total",
		Help: "Per-reservable lookups that degraded to an empty list, by error kind",
	}, []string{"kind"})

	bulkInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reservations_bulk_inflight",
		Help: "Bulk lookups currently running",
	})

	bulkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservations_bulk_duration_seconds",
		Help:    "Wall time of a bulk fan-out",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

// ErrMissingParameter is returned when start, end or the identifier list is
// empty.
var ErrMissingParameter = errors.New("missing required parameter")

// Config holds scheduler configuration.
type Config struct {
	// MaxConcurrency caps simultaneous upstream calls.
	MaxConcurrency int

	// Timeout bounds each individual lookup.
	Timeout time.Duration
}

// DefaultConfig returns the reference pool size of 10 and a 5s per-call timeout.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        5 * time.Second,
	}
}

// ReservationFetcher performs a single reservation lookup.
// *upstream.Client implements it.
type ReservationFetcher interface {
	FetchReservations(ctx context.Context, reservable string, window upstream.TimeWindow) ([]json.RawMessage, error)
}

// Scheduler fans bulk requests out over a fixed pool of workers.
type Scheduler struct {
	fetcher ReservationFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a Scheduler. Non-positive config values fall back to defaults.
func New(fetcher ReservationFetcher, config Config) *Scheduler {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Scheduler{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("fanout"),
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// Validate checks the preconditions of FanOut without doing any work.
func Validate(ids []string, window upstream.TimeWindow) error {
	switch {
	case strings.TrimSpace(window.Start) == "":
		return fmt.Errorf("%w: start", ErrMissingParameter)
	case strings.TrimSpace(window.End) == "":
		return fmt.Errorf("%w: end", ErrMissingParameter)
	case len(ids) == 0:
		return fmt.Errorf("%w: reservable_ids", ErrMissingParameter)
	}
	return nil
}

// FanOut looks up every id inside window and returns once all lookups have
// finished, failed or timed out. Every id appears exactly once in the result.
// Duplicate ids are looked up once per occurrence.
func (s *Scheduler) FanOut(ctx context.Context, ids []string, window upstream.TimeWindow) (BulkResult, error) {
	if err := Validate(ids, window); err != nil {
		return nil, err
	}

	started := time.Now()
	bulkRequestsTotal.Inc()
	bulkIDs.Observe(float64(len(ids)))

	workers := s.config.MaxConcurrency
	if len(ids) < workers {
		workers = len(ids)
	}

	queue := make(chan string, len(ids))
	outcomes := make(chan outcome, len(ids))

	for _, id := range ids {
		queue <- id
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, window, queue, outcomes, &wg, i)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	merged := newMerger(ids)
	for o := range outcomes {
		merged.add(o)
	}

	s.logger.Info().
		Int("reservables", len(ids)).
		Int("failed", merged.failed).
		Int("workers", workers).
		Str("start", window.Start).
		Str("end", window.End).
		Dur("duration", time.Since(started)).
		Msg("Bulk fetch complete")
	bulkDuration.Observe(time.Since(started).Seconds())

	return merged.result, nil
}

// worker drains the queue. It always reports exactly one outcome per id it
// takes, so the collector never waits on a dropped task.
func (s *Scheduler) worker(ctx context.Context, window upstream.TimeWindow, queue <-chan string, outcomes chan<- outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for id := range queue {
		outcomes <- s.fetch(ctx, id, window)
		processed++
	}

	s.logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
}

// fetch runs one lookup under its own deadline and turns panics and errors
// into a failed outcome.
func (s *Scheduler) fetch(ctx context.Context, id string, window upstream.TimeWindow) (o outcome) {
	o.id = id

	bulkInflight.Inc()
	defer bulkInflight.Dec()

	defer func() {
		if r := recover(); r != nil {
			o.records = nil
			o.err = fmt.Errorf("lookup panicked: %v", r)
		}
		if o.err != nil {
			kind := string(upstream.KindOf(o.err))
			if kind == "" {
				kind = "internal"
			}
			bulkTaskFailuresTotal.WithLabelValues(kind).Inc()
			s.logger.Warn().
				Err(o.err).
				Str("reservable", id).
				Str("start", window.Start).
				Str("end", window.End).
				Str("kind", kind).
				Msg("Reservable lookup failed - returning empty list")
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	o.records, o.err = s.fetcher.FetchReservations(callCtx, id, window)
	return o
}
