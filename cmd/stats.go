package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/metrics"
)

// Stats command flags.
var (
	statsFlagMetrics    bool
	statsFlagPrometheus bool
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"stat", "count"},
	Short:   "Show record counts per store",
	Long: `Show how many records each store holds.

--metrics adds the storage operations this invocation performed, and
--prometheus writes them in the Prometheus text format instead.

Examples:
  taskmap stats
  taskmap stats --metrics
  taskmap --backend sqlite stats --prometheus`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVarP(&statsFlagMetrics, "metrics", "m", false, "Include operation metrics")
	statsCmd.Flags().BoolVar(&statsFlagPrometheus, "prometheus", false, "Write operation metrics in Prometheus format")
	statsCmd.MarkFlagsMutuallyExclusive("metrics", "prometheus")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := ctx.DB.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if statsFlagPrometheus {
		if ctx.IsJSON() {
			return errors.NewUserError("--prometheus has its own format", "Drop --format json or use --metrics.")
		}
		ctx.Metrics.WritePrometheus(cmd.OutOrStdout())
		return nil
	}

	var snap *metrics.Snapshot
	if statsFlagMetrics {
		s := ctx.Metrics.Snapshot()
		snap = &s
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintStats(stats, snap)
	}
	ctx.CLIFormatter().PrintStats(stats, snap)
	return nil
}
