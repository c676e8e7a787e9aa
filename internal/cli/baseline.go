package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var baselineJSON bool

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Capture baselines and compare against them",
}

var baselineCaptureCmd = &cobra.Command{
	Use:   "capture <project-id> <name>",
	Short: "Snapshot the current schedule under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		b, err := Service.CaptureBaseline(commandContext(cmd), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Captured baseline %q (%s): %d task(s) at schedule version %d\n",
			b.Name, b.ID, len(b.Entries), b.ScheduleVersion)
		return nil
	},
}

var baselineCompareCmd = &cobra.Command{
	Use:   "compare <project-id> <baseline>",
	Short: "Compare the live schedule with a baseline",
	Long: `Compare the live schedule with a baseline, given by ID or name.
Variances are in working days; positive means later or longer than planned.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		report, err := Service.CompareToBaseline(commandContext(cmd), args[0], args[1])
		if err != nil {
			return err
		}
		if baselineJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, titleStyle.Render("Baseline "+report.BaselineName))
		rows := make([][]string, 0, len(report.Tasks))
		slipped := make([]bool, 0, len(report.Tasks))
		for _, v := range report.Tasks {
			if v.Unscheduled {
				rows = append(rows, []string{v.WBSCode, v.Name, "-", "-", "-"})
				slipped = append(slipped, false)
				continue
			}
			rows = append(rows, []string{
				v.WBSCode, v.Name,
				strconv.Itoa(v.StartVarianceDays), strconv.Itoa(v.ScheduleVarianceDays), strconv.Itoa(v.DurationVarianceDays),
			})
			slipped = append(slipped, v.ScheduleVarianceDays > 0)
		}
		fmt.Fprintln(w, renderTable([]string{"WBS", "Task", "Start", "Finish", "Duration"}, rows,
			func(row int) bool { return row >= 0 && row < len(slipped) && slipped[row] }))
		if len(report.Added) > 0 {
			fmt.Fprintf(w, "\nAdded since baseline: %d task(s)\n", len(report.Added))
		}
		for _, e := range report.Removed {
			fmt.Fprintf(w, "Removed since baseline: %s %s\n", e.WBSCode, e.Name)
		}
		return nil
	},
}

func init() {
	baselineCompareCmd.Flags().BoolVar(&baselineJSON, "json", false, "Output the variance report as JSON")
	baselineCmd.AddCommand(baselineCaptureCmd, baselineCompareCmd)
	rootCmd.AddCommand(baselineCmd)
}
