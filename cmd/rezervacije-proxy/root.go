package main

import (
	"fmt"

	"github.com/Sternrassler/rezervacije-proxy/internal/config"
	"github.com/Sternrassler/rezervacije-proxy/pkg/fanout"
	"github.com/Sternrassler/rezervacije-proxy/pkg/logging"
	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "rezervacije-proxy",
		Short:         "Aggregation gateway in front of the reservation API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file read before the environment")

	root.AddCommand(newServeCmd(&envFile))
	root.AddCommand(newBulkCmd(&envFile))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rezervacije-proxy %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

// setup loads the configuration and installs the global logger.
func setup(envFile string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	return cfg, logger, nil
}

func userAgent(cfg *config.Config) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return upstream.DefaultUserAgent + "/" + Version
}

// newUpstream builds the passthrough client and the bulk scheduler. The
// scheduler gets its own client so the per-ID timeout applies to bulk calls.
func newUpstream(cfg *config.Config) (*upstream.Client, *fanout.Scheduler, error) {
	passthrough, err := upstream.New(upstream.Config{
		BaseURL:   cfg.UpstreamURL,
		Timeout:   cfg.UpstreamTimeout,
		UserAgent: userAgent(cfg),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create upstream client: %w", err)
	}

	bulkClient, err := upstream.New(upstream.Config{
		BaseURL:   cfg.UpstreamURL,
		Timeout:   cfg.BulkTimeout,
		UserAgent: userAgent(cfg),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create bulk client: %w", err)
	}

	scheduler := fanout.New(bulkClient, fanout.Config{
		MaxConcurrency: cfg.BulkConcurrency,
		Timeout:        cfg.BulkTimeout,
	})
	return passthrough, scheduler, nil
}
