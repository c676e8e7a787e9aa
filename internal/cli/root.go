package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "jzs",
	Short: "Jizoni Schedule - CPM scheduling for construction projects",
	Long: `Jizoni Schedule (jzs) keeps construction project schedules: tasks in a
WBS hierarchy, dependencies with lag, working-day calendars and baselines.

Every change reschedules the project with the Critical Path Method and is
stored together with its early/late dates, float and critical path.`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return writeMetricsTextfile()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jzs %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. An interrupt cancels the command context,
// which releases any wait on a busy project.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	setContext(rootCmd, ctx)
	return rootCmd.ExecuteContext(ctx)
}

// setContext hands ctx to every command. Cobra only fills in a missing
// context, so a command run earlier in the process would otherwise keep
// the cancelled context of that run.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

// commandContext returns the command's context, or Background when the
// command is run directly (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireService() error {
	if Service == nil {
		return fmt.Errorf("schedule service not initialized")
	}
	return nil
}

// writeMetricsTextfile dumps the collector after every command when a
// textfile path is configured.
func writeMetricsTextfile() error {
	if Collector == nil || MetricsTextfile == "" {
		return nil
	}
	return Collector.WriteTextfile(MetricsTextfile)
}
