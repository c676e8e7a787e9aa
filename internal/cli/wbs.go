package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var wbsCmd = &cobra.Command{
	Use:   "wbs",
	Short: "Work breakdown structure commands",
}

var wbsImportCmd = &cobra.Command{
	Use:   "import <project-id> <file|->",
	Short: "Import generated WBS tasks into a project",
	Long: `Import a WBS payload of the form

  {"tasks": [{"name": "Foundations", "wbs_code": "1", "level": 1,
              "duration_days": 5, "description": "..."}]}

as produced by a WBS generator. Use - to read from stdin. The tasks are
validated and inserted as one change: either all of them are added or none.
Fractional durations are rounded up to whole working days.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		var (
			payload []byte
			err     error
		)
		if args[1] == "-" {
			payload, err = io.ReadAll(cmd.InOrStdin())
		} else {
			payload, err = os.ReadFile(args[1])
		}
		if err != nil {
			return fmt.Errorf("reading WBS payload: %w", err)
		}
		tasks, err := Service.ImportWBS(commandContext(cmd), args[0], payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d task(s)\n", len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %s (%dd)\n", t.WBSCode, t.Name, t.DurationDays)
		}
		return nil
	},
}

func init() {
	wbsCmd.AddCommand(wbsImportCmd)
	rootCmd.AddCommand(wbsCmd)
}
