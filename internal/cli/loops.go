package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var loopsJSON bool

var loopsCmd = &cobra.Command{
	Use:   "loops <project-id>",
	Short: "List relationships rejected because they would close a loop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		loops, err := Service.ScheduleLoops(args[0])
		if err != nil {
			return err
		}
		if loopsJSON {
			return printJSON(cmd.OutOrStdout(), loops)
		}
		if len(loops) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No rejected loops.")
			return nil
		}
		rows := make([][]string, 0, len(loops))
		for _, l := range loops {
			rows = append(rows, []string{
				l.DetectedAt.Format(time.RFC3339),
				l.RejectedPredecessorID + " -> " + l.RejectedSuccessorID,
				strings.Join(l.TaskIDs, " -> "),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Detected", "Rejected edge", "Loop"}, rows, nil))
		return nil
	},
}

func init() {
	loopsCmd.Flags().BoolVar(&loopsJSON, "json", false, "Output loops as JSON")
	rootCmd.AddCommand(loopsCmd)
}
