package core

import (
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// CaptureBaseline snapshots every task's current dates and duration into a
// new baseline. Names are unique per project, compared case-insensitively
// after trimming.
func CaptureBaseline(s *Schedule, id, name string, existing []models.Baseline, now time.Time) (*models.Baseline, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(CodeInvalidInput, "baseline name is required")
	}
	for _, b := range existing {
		if strings.EqualFold(strings.TrimSpace(b.Name), name) {
			return nil, newError(CodeDuplicateBaselineName, "project %q already has a baseline named %q", s.Project.ID, b.Name)
		}
	}

	b := &models.Baseline{
		ID:              id,
		ProjectID:       s.Project.ID,
		Name:            name,
		CapturedAt:      now.UTC(),
		ScheduleVersion: s.Version,
		Entries:         make([]models.BaselineEntry, 0, len(s.Tasks)),
	}
	for _, t := range s.TaskList() {
		b.Entries = append(b.Entries, models.BaselineEntry{
			TaskID:       t.ID,
			WBSCode:      t.WBSCode,
			Name:         t.Name,
			StartDate:    t.StartDate,
			EndDate:      t.EndDate,
			DurationDays: t.DurationDays,
		})
	}
	return b, nil
}

// CompareToBaseline reports the variance of every task present in both
// the baseline and the live schedule. Day counts use the live task's
// calendar; positive values mean the task has slipped. Live tasks missing
// from the baseline are listed as added, baseline entries whose task is
// gone as removed.
func CompareToBaseline(s *Schedule, b *models.Baseline, now time.Time) (*models.VarianceReport, error) {
	cals, err := s.CalendarSet()
	if err != nil {
		return nil, err
	}

	report := &models.VarianceReport{
		BaselineID:   b.ID,
		BaselineName: b.Name,
		ProjectID:    s.Project.ID,
		ComparedAt:   now.UTC(),
		Tasks:        []models.TaskVariance{},
		Added:        []string{},
		Removed:      []models.BaselineEntry{},
	}

	inBaseline := make(map[string]bool, len(b.Entries))
	for _, e := range b.Entries {
		inBaseline[e.TaskID] = true
		live, ok := s.Tasks[e.TaskID]
		if !ok {
			report.Removed = append(report.Removed, e)
			continue
		}

		cal := cals.For(live)
		v := models.TaskVariance{
			TaskID:               live.ID,
			WBSCode:              live.WBSCode,
			Name:                 live.Name,
			DurationVarianceDays: live.DurationDays - e.DurationDays,
		}
		if e.StartDate != nil && live.StartDate != nil {
			v.StartVarianceDays = cal.WorkingDaysBetween(*e.StartDate, *live.StartDate)
		}
		if e.EndDate != nil && live.EndDate != nil {
			v.ScheduleVarianceDays = cal.WorkingDaysBetween(*e.EndDate, *live.EndDate)
		} else {
			v.Unscheduled = true
		}
		report.Tasks = append(report.Tasks, v)
	}

	for _, t := range s.TaskList() {
		if !inBaseline[t.ID] {
			report.Added = append(report.Added, t.ID)
		}
	}

	sort.SliceStable(report.Tasks, func(i, j int) bool {
		return CompareWBSCodes(report.Tasks[i].WBSCode, report.Tasks[j].WBSCode) < 0
	})
	return report, nil
}
