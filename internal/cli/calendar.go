package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	calendarName     string
	calendarWeek     string
	calendarHolidays []string
	calendarWorkdays []string
	calendarFile     string
	calendarJSON     bool
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage working-day calendars",
}

var calendarSetCmd = &cobra.Command{
	Use:   "set <calendar-id>",
	Short: "Create or replace a calendar",
	Long: `Create or replace a calendar. The weekly pattern comes from --week
(e.g. mon,tue,wed,thu,fri or mon-sat) and single dates are overridden with
--holiday and --workday, given as YYYY-MM-DD or YYYY-MM-DD=Name.

With --file the calendar is read from a YAML document instead:

  name: Site crew
  work_week: [false, true, true, true, true, true, true]
  exceptions:
    - date: 2024-12-25T00:00:00Z
      working: false
      name: Christmas

Every project that uses the calendar is rescheduled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		cal, err := buildCalendar(args[0])
		if err != nil {
			return err
		}
		if err := Service.SaveCalendar(commandContext(cmd), cal); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved calendar %s (%s, %d exception(s))\n",
			cal.ID, formatWorkWeek(cal.WorkWeek), len(cal.Exceptions))
		return nil
	},
}

var calendarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calendars",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		cals, err := Service.ListCalendars()
		if err != nil {
			return err
		}
		if calendarJSON {
			return printJSON(cmd.OutOrStdout(), cals)
		}
		rows := make([][]string, 0, len(cals))
		for _, c := range cals {
			rows = append(rows, []string{c.ID, c.Name, formatWorkWeek(c.WorkWeek), strconv.Itoa(len(c.Exceptions))})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Work week", "Exceptions"}, rows, nil))
		return nil
	},
}

func buildCalendar(id string) (models.Calendar, error) {
	if calendarFile != "" {
		data, err := os.ReadFile(calendarFile)
		if err != nil {
			return models.Calendar{}, fmt.Errorf("reading calendar file: %w", err)
		}
		var cal models.Calendar
		if err := yaml.Unmarshal(data, &cal); err != nil {
			return models.Calendar{}, fmt.Errorf("parsing calendar file: %w", err)
		}
		cal.ID = id
		if cal.Name == "" {
			cal.Name = id
		}
		return cal, nil
	}

	week, err := parseWorkWeek(calendarWeek)
	if err != nil {
		return models.Calendar{}, err
	}
	cal := models.Calendar{ID: id, Name: calendarName, WorkWeek: week}
	if cal.Name == "" {
		cal.Name = id
	}
	for _, spec := range calendarHolidays {
		ex, err := parseException(spec, false)
		if err != nil {
			return models.Calendar{}, err
		}
		cal.Exceptions = append(cal.Exceptions, ex)
	}
	for _, spec := range calendarWorkdays {
		ex, err := parseException(spec, true)
		if err != nil {
			return models.Calendar{}, err
		}
		cal.Exceptions = append(cal.Exceptions, ex)
	}
	return cal, nil
}

// parseWorkWeek accepts comma separated day names and ranges such as
// "mon-fri" or "mon,wed,fri-sun". Empty selects Monday to Friday.
func parseWorkWeek(s string) ([7]bool, error) {
	var week [7]bool
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return models.StandardWorkWeek(), nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		from, to, isRange := strings.Cut(part, "-")
		start, ok := weekdayNames[strings.TrimSpace(from)]
		if !ok {
			return week, fmt.Errorf("unknown weekday %q (use sun, mon, ... sat)", from)
		}
		end := start
		if isRange {
			if end, ok = weekdayNames[strings.TrimSpace(to)]; !ok {
				return week, fmt.Errorf("unknown weekday %q (use sun, mon, ... sat)", to)
			}
		}
		for d := start; ; d = (d + 1) % 7 {
			week[d] = true
			if d == end {
				break
			}
		}
	}
	return week, nil
}

func parseException(spec string, working bool) (models.CalendarException, error) {
	date, name, _ := strings.Cut(spec, "=")
	d, err := parseDate(date)
	if err != nil {
		return models.CalendarException{}, err
	}
	return models.CalendarException{Date: d, Working: working, Name: strings.TrimSpace(name)}, nil
}

func formatWorkWeek(week [7]bool) string {
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	var days []string
	for _, d := range order {
		if week[d] {
			days = append(days, strings.ToLower(d.String()[:3]))
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ",")
}

func init() {
	calendarSetCmd.Flags().StringVar(&calendarName, "name", "", "Calendar display name")
	calendarSetCmd.Flags().StringVar(&calendarWeek, "week", "mon-fri", "Working weekdays")
	calendarSetCmd.Flags().StringArrayVar(&calendarHolidays, "holiday", nil, "Non-working date (YYYY-MM-DD[=Name]), repeatable")
	calendarSetCmd.Flags().StringArrayVar(&calendarWorkdays, "workday", nil, "Extra working date (YYYY-MM-DD[=Name]), repeatable")
	calendarSetCmd.Flags().StringVar(&calendarFile, "file", "", "Read the calendar from a YAML file")
	calendarListCmd.Flags().BoolVar(&calendarJSON, "json", false, "Output calendars as JSON")

	calendarCmd.AddCommand(calendarSetCmd, calendarListCmd)
	rootCmd.AddCommand(calendarCmd)
}
