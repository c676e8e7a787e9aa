package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	taskDuration    int
	taskParent      string
	taskWBS         string
	taskCalendar    string
	taskPriority    string
	taskStatus      string
	taskAssignee    string
	taskDescription string
	taskName        string
	taskCascade     bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add, edit, move and delete tasks",
	Long: `Manage the tasks of a project. Tasks are referred to by ID or by WBS
code (e.g. 1.2.3). Every change reschedules the project.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <project-id> <name>",
	Short: "Add a task to a project",
	Long: `Add a task. Without --wbs the task becomes the last child of --parent
(or a new top-level task). With --wbs the parent is taken from the code.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		projectID := args[0]
		t := models.Task{
			Name:         args[1],
			Description:  taskDescription,
			WBSCode:      taskWBS,
			DurationDays: taskDuration,
			CalendarID:   taskCalendar,
			Priority:     models.Priority(taskPriority),
			AssignedTo:   taskAssignee,
		}
		if taskParent != "" {
			parentID, err := resolveTask(ctx, projectID, taskParent)
			if err != nil {
				return err
			}
			t.ParentTaskID = parentID
		}
		created, err := Service.CreateTask(ctx, projectID, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s), %d day(s)\n",
			created.WBSCode, created.Name, created.ID, created.DurationDays)
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <project-id> <task>",
	Short: "Change a task's name, duration, status or other fields",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		taskID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		var u core.TaskUpdate
		flags := cmd.Flags()
		if flags.Changed("name") {
			u.Name = &taskName
		}
		if flags.Changed("description") {
			u.Description = &taskDescription
		}
		if flags.Changed("duration") {
			u.DurationDays = &taskDuration
		}
		if flags.Changed("status") {
			s := models.TaskStatus(taskStatus)
			u.Status = &s
		}
		if flags.Changed("priority") {
			p := models.Priority(taskPriority)
			u.Priority = &p
		}
		if flags.Changed("calendar") {
			u.CalendarID = &taskCalendar
		}
		if flags.Changed("assign") {
			u.AssignedTo = &taskAssignee
		}
		updated, err := Service.UpdateTask(ctx, args[0], taskID, u)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s: %s to %s\n", updated.WBSCode, updated.Name,
			formatDate(updated.StartDate), formatDate(updated.EndDate))
		return nil
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <project-id> <task>",
	Short: "Move a task and its subtree under another parent",
	Long: `Move a task, together with its descendants, to become the last child of
--parent. Without --parent the task becomes a top-level task. WBS codes of
the moved subtree are renumbered.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		taskID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		parentID := ""
		if taskParent != "" {
			if parentID, err = resolveTask(ctx, args[0], taskParent); err != nil {
				return err
			}
		}
		moved, err := Service.MoveTask(ctx, args[0], taskID, parentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", moved.Name, moved.WBSCode)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <project-id> <task>",
	Short: "Delete a task",
	Long: `Delete a task with its relationships and assignments. A task with
children is only deleted with --cascade, which removes the whole subtree.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		taskID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		res, err := Service.DeleteTask(ctx, args[0], taskID, taskCascade)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s), %d relationship(s), %d assignment(s)\n",
			len(res.TaskIDs), len(res.Relationships), len(res.Assignments))
		return nil
	},
}

// resolveTask maps a task ID or WBS code to a task ID.
func resolveTask(ctx context.Context, projectID, ref string) (string, error) {
	sched, err := Service.GetSchedule(ctx, projectID)
	if err != nil {
		return "", err
	}
	if _, ok := sched.Tasks[ref]; ok {
		return ref, nil
	}
	if t, ok := sched.Hierarchy().ByCode(ref); ok {
		return t.ID, nil
	}
	return "", fmt.Errorf("no task with ID or WBS code %q in project %s", ref, projectID)
}

func init() {
	taskAddCmd.Flags().IntVarP(&taskDuration, "duration", "d", 0, "Duration in working days")
	taskAddCmd.Flags().StringVar(&taskParent, "parent", "", "Parent task (ID or WBS code)")
	taskAddCmd.Flags().StringVar(&taskWBS, "wbs", "", "Explicit WBS code")
	taskAddCmd.Flags().StringVar(&taskDescription, "description", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskCalendar, "calendar", "", "Calendar ID overriding the project's")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "", "Priority (low, medium, high, critical)")
	taskAddCmd.Flags().StringVar(&taskAssignee, "assign", "", "Person responsible")

	taskUpdateCmd.Flags().StringVar(&taskName, "name", "", "New name")
	taskUpdateCmd.Flags().StringVar(&taskDescription, "description", "", "New description")
	taskUpdateCmd.Flags().IntVarP(&taskDuration, "duration", "d", 0, "New duration in working days")
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "Status (not_started, in_progress, completed, on_hold)")
	taskUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "Priority (low, medium, high, critical)")
	taskUpdateCmd.Flags().StringVar(&taskCalendar, "calendar", "", "Calendar ID (empty for the project's)")
	taskUpdateCmd.Flags().StringVar(&taskAssignee, "assign", "", "Person responsible")

	taskMoveCmd.Flags().StringVar(&taskParent, "parent", "", "New parent task (ID or WBS code)")
	taskDeleteCmd.Flags().BoolVar(&taskCascade, "cascade", false, "Also delete all descendants")

	taskCmd.AddCommand(taskAddCmd, taskUpdateCmd, taskMoveCmd, taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}
