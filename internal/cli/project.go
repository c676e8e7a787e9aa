package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	projectDescription string
	projectType        string
	projectAnchor      string
	projectCalendar    string
	projectFloatPaths  int
	projectJSON        bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list and configure projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new project",
	Long: `Create a project. Its schedule is anchored at --anchor (today when
omitted) and uses --calendar for working days unless a task names its own.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		in := core.ProjectInput{
			Name:          args[0],
			Description:   projectDescription,
			ProjectType:   projectType,
			CalendarID:    projectCalendar,
			MaxFloatPaths: projectFloatPaths,
		}
		if projectAnchor != "" {
			anchor, err := parseDate(projectAnchor)
			if err != nil {
				return err
			}
			in.AnchorDate = anchor
		}
		p, err := Service.CreateProject(commandContext(cmd), in)
		if err != nil {
			return err
		}
		if projectJSON {
			return printJSON(cmd.OutOrStdout(), p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.Name, p.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "  anchor:   %s\n", p.Settings.AnchorDate.Format(dateLayout))
		fmt.Fprintf(cmd.OutOrStdout(), "  calendar: %s\n", p.Settings.CalendarID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		projects, err := Service.ListProjects()
		if err != nil {
			return err
		}
		if projectJSON {
			if projects == nil {
				projects = []models.Project{}
			}
			return printJSON(cmd.OutOrStdout(), projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
			return nil
		}
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{
				p.ID, p.Name, p.Settings.AnchorDate.Format(dateLayout), p.Settings.CalendarID,
				strconv.FormatUint(p.ScheduleVersion, 10), p.UpdatedAt.Format(time.RFC3339),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"ID", "Name", "Anchor", "Calendar", "Version", "Updated"}, rows, nil))
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		if err := Service.DeleteProject(commandContext(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
		return nil
	},
}

var projectSettingsCmd = &cobra.Command{
	Use:   "settings <project-id>",
	Short: "Change a project's anchor date, calendar or float path limit",
	Long: `Change the scheduling settings of a project. Only the flags given are
changed. The project is rescheduled afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		settings := models.ScheduleSettings{
			ProjectID:     args[0],
			CalendarID:    projectCalendar,
			MaxFloatPaths: projectFloatPaths,
		}
		if projectAnchor != "" {
			anchor, err := parseDate(projectAnchor)
			if err != nil {
				return err
			}
			settings.AnchorDate = anchor
		}
		p, err := Service.UpdateSettings(commandContext(cmd), args[0], settings)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: anchor %s, calendar %s, schedule version %d\n",
			p.Name, p.Settings.AnchorDate.Format(dateLayout), p.Settings.CalendarID, p.ScheduleVersion)
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectCreateCmd.Flags().StringVar(&projectType, "type", "", "Project type (e.g. residential, commercial)")
	for _, c := range []*cobra.Command{projectCreateCmd, projectSettingsCmd} {
		c.Flags().StringVar(&projectAnchor, "anchor", "", "Schedule anchor date (YYYY-MM-DD)")
		c.Flags().StringVar(&projectCalendar, "calendar", "", "Default calendar ID")
		c.Flags().IntVar(&projectFloatPaths, "float-paths", 0, "Maximum number of float paths to keep")
	}
	projectCreateCmd.Flags().BoolVar(&projectJSON, "json", false, "Output the project as JSON")
	projectListCmd.Flags().BoolVar(&projectJSON, "json", false, "Output projects as JSON")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectDeleteCmd, projectSettingsCmd)
	rootCmd.AddCommand(projectCmd)
}
