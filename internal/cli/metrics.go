package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
)

var (
	metricsJSON     bool
	metricsSince    string
	metricsTextfile string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display scheduling activity metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include projects and tasks created, relationships added, rejected
loops, recomputes by trigger and baselines captured. --textfile also writes
the process counters in Prometheus text format for a node exporter.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsTextfile != "" {
			if Collector == nil {
				return fmt.Errorf("metrics collector not initialized")
			}
			if err := Collector.WriteTextfile(metricsTextfile); err != nil {
				return err
			}
		}
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
		}

		sinceTime, err := observability.SinceCutoff(metricsSince, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			return printJSON(cmd.OutOrStdout(), metrics)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Metrics (since %s)\n\n", sinceTime.Format(dateLayout))
		fmt.Fprintf(w, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(w, "  %-24s %d\n", "Projects created:", metrics.ProjectsCreated)
		fmt.Fprintf(w, "  %-24s %d\n", "Tasks created:", metrics.TasksCreated)
		fmt.Fprintf(w, "  %-24s %d\n", "Tasks deleted:", metrics.TasksDeleted)
		fmt.Fprintf(w, "  %-24s %d\n", "Relationships added:", metrics.RelationshipsAdded)
		fmt.Fprintf(w, "  %-24s %d\n", "Loops rejected:", metrics.LoopsRejected)
		fmt.Fprintf(w, "  %-24s %d\n", "Recomputes:", metrics.Recomputes)
		fmt.Fprintf(w, "  %-24s %d\n", "Stale recomputes:", metrics.StaleRecomputes)
		fmt.Fprintf(w, "  %-24s %d\n", "Baselines captured:", metrics.BaselinesCaptured)

		printCounts(w, "Recomputes by trigger:", metrics.RecomputesByTrigger)
		printCounts(w, "Events by project:", metrics.EventsByProject)

		if metrics.OldestEvent != nil {
			fmt.Fprintf(w, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(w, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}
		return nil
	},
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "\n  %s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-20s %d\n", k+":", counts[k])
	}
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Look-back window for metrics (e.g. 24h, 10d, 6w)")
	metricsCmd.Flags().StringVar(&metricsTextfile, "textfile", "", "Also write Prometheus counters to this file")
	rootCmd.AddCommand(metricsCmd)
}
