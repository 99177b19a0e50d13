package main

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/rezervacije-proxy/pkg/upstream"
	"github.com/spf13/cobra"
)

func newBulkCmd(envFile *string) *cobra.Command {
	var (
		start  string
		end    string
		ids    []string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Fetch reservations for several reservables and print the merged JSON",
		Example: "  rezervacije-proxy bulk --start 2024-03-04T00:00:00 --end 2024-03-05T00:00:00 --id 12 --id 15",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(*envFile)
			if err != nil {
				return err
			}

			_, scheduler, err := newUpstream(cfg)
			if err != nil {
				return err
			}

			result, err := scheduler.FanOut(cmd.Context(), ids, upstream.TimeWindow{Start: start, End: end})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "window start, passed to the upstream verbatim")
	cmd.Flags().StringVar(&end, "end", "", "window end, passed to the upstream verbatim")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "reservable ID (repeatable or comma separated)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")

	return cmd
}
