package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/internal/export"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all schedule data as one JSON archive",
	Long: `Write every project, task, relationship, calendar, baseline, float path
and rejected loop to a single JSON archive. By default the archive is
written to jizoni-project-data-<date>.json in the current directory; use
--output - for stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Exporter == nil {
			return fmt.Errorf("exporter not initialized")
		}
		ctx := commandContext(cmd)
		if exportOutput == "-" {
			_, err := Exporter.WriteJSON(ctx, cmd.OutOrStdout())
			return err
		}
		path := exportOutput
		if path == "" {
			path = export.FileName(time.Now())
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating export directory: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		archive, err := Exporter.WriteJSON(ctx, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			return fmt.Errorf("writing export: %w", err)
		}
		s := archive.Summary
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d project(s), %d task(s), %d relationship(s) to %s\n",
			s.TotalProjects, s.TotalTasks, s.TotalRelationships, path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, or - for stdout")
	rootCmd.AddCommand(exportCmd)
}
