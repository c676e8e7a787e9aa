package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	scheduleJSON      bool
	scheduleRecompute bool
)

// scheduleView is the JSON form of a schedule.
type scheduleView struct {
	Project       models.Project            `json:"project"`
	Version       uint64                    `json:"version"`
	Finish        string                    `json:"finish,omitempty"`
	CriticalPath  []string                  `json:"critical_path"`
	Tasks         []models.Task             `json:"tasks"`
	Relationships []models.TaskRelationship `json:"relationships"`
	FloatPaths    []models.FloatPath        `json:"float_paths"`
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <project-id>",
	Short: "Show a project's schedule",
	Long: `Show every task in WBS order with its CPM dates: early and late
start/finish, total and free float. Critical tasks are highlighted and the
float paths are listed below the table.

--recompute reschedules from the stored state first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		var (
			sched *core.Schedule
			err   error
		)
		if scheduleRecompute {
			sched, err = Service.Recompute(ctx, args[0])
		} else {
			sched, err = Service.GetSchedule(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if scheduleJSON {
			return printJSON(cmd.OutOrStdout(), newScheduleView(sched))
		}
		renderSchedule(cmd.OutOrStdout(), sched)
		return nil
	},
}

func newScheduleView(sched *core.Schedule) scheduleView {
	v := scheduleView{
		Project:       sched.Project,
		Version:       sched.Version,
		CriticalPath:  sched.CriticalPath(),
		Tasks:         sched.TaskList(),
		Relationships: sched.Relationships(),
		FloatPaths:    sched.FloatPaths,
	}
	if finish, ok := sched.ProjectFinish(); ok {
		v.Finish = finish.Format(dateLayout)
	}
	if v.CriticalPath == nil {
		v.CriticalPath = []string{}
	}
	if v.Tasks == nil {
		v.Tasks = []models.Task{}
	}
	if v.Relationships == nil {
		v.Relationships = []models.TaskRelationship{}
	}
	if v.FloatPaths == nil {
		v.FloatPaths = []models.FloatPath{}
	}
	return v
}

func renderSchedule(w io.Writer, sched *core.Schedule) {
	p := sched.Project
	fmt.Fprintln(w, titleStyle.Render(p.Name))
	finish := "-"
	if f, ok := sched.ProjectFinish(); ok {
		finish = f.Format(dateLayout)
	}
	fmt.Fprintf(w, "anchor %s  calendar %s  finish %s  version %d\n\n",
		p.Settings.AnchorDate.Format(dateLayout), p.Settings.CalendarID, finish, sched.Version)

	tasks := sched.TaskList()
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tasks."))
		return
	}
	critical := make([]bool, len(tasks))
	rows := make([][]string, 0, len(tasks))
	for i, t := range tasks {
		row := []string{t.WBSCode, strings.Repeat("  ", max(t.Level-1, 0)) + t.Name, strconv.Itoa(t.DurationDays)}
		if s := t.Schedule; s != nil {
			critical[i] = s.IsCritical
			row = append(row,
				s.EarlyStart.Format(dateLayout), s.EarlyFinish.Format(dateLayout),
				s.LateStart.Format(dateLayout), s.LateFinish.Format(dateLayout),
				strconv.Itoa(s.TotalFloat), strconv.Itoa(s.FreeFloat))
		} else {
			row = append(row, "-", "-", "-", "-", "-", "-")
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(w, renderTable(
		[]string{"WBS", "Task", "Dur", "ES", "EF", "LS", "LF", "TF", "FF"},
		rows, func(row int) bool { return row >= 0 && row < len(critical) && critical[row] }))

	if len(sched.FloatPaths) == 0 {
		return
	}
	codes := make(map[string]string, len(tasks))
	for _, t := range tasks {
		codes[t.ID] = t.WBSCode
	}
	fmt.Fprintln(w, "\nFloat paths:")
	for _, fp := range sched.FloatPaths {
		chain := make([]string, len(fp.TaskIDs))
		for i, id := range fp.TaskIDs {
			chain[i] = codes[id]
		}
		fmt.Fprintf(w, "  %d. float %d: %s\n", fp.Ordinal, fp.TotalFloat, strings.Join(chain, " -> "))
	}
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleJSON, "json", false, "Output the schedule as JSON")
	scheduleCmd.Flags().BoolVar(&scheduleRecompute, "recompute", false, "Recompute before showing")
	rootCmd.AddCommand(scheduleCmd)
}
