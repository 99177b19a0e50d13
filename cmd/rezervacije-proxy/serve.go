package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/rezervacije-proxy/internal/config"
	"github.com/Sternrassler/rezervacije-proxy/pkg/cache"
	"github.com/Sternrassler/rezervacije-proxy/pkg/gateway"
	"github.com/Sternrassler/rezervacije-proxy/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*envFile)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ln, err := net.Listen("tcp", cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
			}
			return serve(ctx, cfg, ln, logger)
		},
	}
}

// buildHandler wires the gateway. The returned cleanup closes the Redis
// client when caching is enabled.
func buildHandler(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	passthrough, scheduler, err := newUpstream(cfg)
	if err != nil {
		return nil, nil, err
	}

	var opts []gateway.Option
	cleanup := func() {}

	if cfg.CacheEnabled() {
		redisOpts, err := cfg.RedisOptions()
		if err != nil {
			return nil, nil, err
		}
		redisClient := redis.NewClient(redisOpts)
		manager := cache.NewManager(redisClient, cfg.CacheTTL)

		// An unreachable Redis is reported by /readyz; requests fall back
		// to the upstream.
		if err := manager.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", redisOpts.Addr).Msg("Redis not reachable at startup")
		} else {
			logger.Info().Str("addr", redisOpts.Addr).Dur("ttl", cfg.CacheTTL).Msg("Response cache enabled")
		}

		opts = append(opts, gateway.WithCache(manager))
		cleanup = func() { _ = redisClient.Close() }
	}

	h := gateway.New(passthrough, scheduler, opts...)
	return h.Router(metrics.Handler()), cleanup, nil
}

// serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down within the configured timeout.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, logger zerolog.Logger) error {
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("upstream", cfg.UpstreamURL).
			Int("bulk_concurrency", cfg.BulkConcurrency).
			Str("version", Version).
			Msg("Starting HTTP server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
