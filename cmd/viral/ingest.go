package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/viralengine/internal/ingest"
	"github.com/abelbrown/viralengine/internal/report"
)

var flagIngestLimit int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch signals from every configured source",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := env.pipeline().Run(cmd.Context(), ingest.Options{
			Industry: env.cfg.Ingest.Industry,
			Limit:    flagIngestLimit,
		})

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "inserted %d, updated %d, skipped %d, filtered %d in %s\n",
			res.Inserted, res.Updated, res.Skipped, res.Filtered, res.Duration.Round(time.Millisecond))
		report.Errors(out, res.Errors)
		if !res.Success {
			return fmt.Errorf("ingest failed: %w", res.Err())
		}
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show per-source fetch status",
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := env.store.SourceStatuses(cmd.Context())
		if err != nil {
			return err
		}
		report.Sources(cmd.OutOrStdout(), statuses, nowFunc())
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&flagIngestLimit, "limit", 0, "max signals per source (0 uses the source default)")
}
