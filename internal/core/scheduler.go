package core

import (
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// DefaultMaxFloatPaths caps how many minimum-float paths a recompute keeps
// when the project does not set its own limit.
const DefaultMaxFloatPaths = 100

// Scheduler runs the Critical Path Method over a Schedule snapshot.
type Scheduler struct {
	maxFloatPaths int
}

// NewScheduler creates a scheduler. maxFloatPaths <= 0 selects
// DefaultMaxFloatPaths.
func NewScheduler(maxFloatPaths int) *Scheduler {
	if maxFloatPaths <= 0 {
		maxFloatPaths = DefaultMaxFloatPaths
	}
	return &Scheduler{maxFloatPaths: maxFloatPaths}
}

type cpmDates struct {
	es, ef, ls, lf time.Time
}

// Compute returns a copy of s with every task's early and late dates,
// floats, critical flag and the float paths recomputed from scratch. The
// input snapshot is not modified. It fails with UnscheduledGraph when the
// project has no tasks or no anchor date.
func (sc *Scheduler) Compute(s *Schedule) (*Schedule, error) {
	if len(s.Tasks) == 0 {
		return nil, newError(CodeUnscheduledGraph, "project %q has no tasks to schedule", s.Project.ID)
	}
	if s.Project.Settings.AnchorDate.IsZero() {
		return nil, newError(CodeUnscheduledGraph, "project %q has no anchor date", s.Project.ID)
	}
	cals, err := s.CalendarSet()
	if err != nil {
		return nil, err
	}
	order, err := s.Graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if len(s.Graph.Roots()) == 0 {
		return nil, newError(CodeUnscheduledGraph, "project %q has no task without predecessors", s.Project.ID)
	}

	out := s.Clone()
	anchor := DateOf(s.Project.Settings.AnchorDate)
	dates := make(map[string]*cpmDates, len(order))

	// Forward pass.
	for _, id := range order {
		t := out.Tasks[id]
		cal := cals.For(t)
		es := cal.NextWorkingDay(anchor)
		for _, rel := range out.Graph.PredecessorsOf(id) {
			if cand := forwardCandidate(rel, dates[rel.PredecessorID], cal, t.DurationDays); cand.After(es) {
				es = cand
			}
		}
		dates[id] = &cpmDates{es: es, ef: cal.AddWorkingDays(es, t.DurationDays)}
	}

	finish := dates[order[0]].ef
	for _, d := range dates {
		if d.ef.After(finish) {
			finish = d.ef
		}
	}

	// Backward pass.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		t := out.Tasks[id]
		cal := cals.For(t)
		lf := finish
		for _, rel := range out.Graph.SuccessorsOf(id) {
			succ := out.Tasks[rel.SuccessorID]
			cand := backwardCandidate(rel, dates[rel.SuccessorID], cals.For(succ), cal, t.DurationDays)
			if cand.Before(lf) {
				lf = cand
			}
		}
		d := dates[id]
		d.lf = cal.PrevWorkingDay(lf)
		d.ls = cal.AddWorkingDays(d.lf, -t.DurationDays)
	}

	// Floats.
	floats := make(map[string]int, len(order))
	for _, id := range order {
		t := out.Tasks[id]
		cal := cals.For(t)
		d := dates[id]
		total := cal.WorkingDaysBetween(d.es, d.ls)

		// Free float: how far the early finish can slip before the project
		// finish or any successor's early dates move.
		free := cal.WorkingDaysBetween(d.ef, cal.PrevWorkingDay(finish))
		for _, rel := range out.Graph.SuccessorsOf(id) {
			sd := dates[rel.SuccessorID]
			early := &cpmDates{ls: sd.es, lf: sd.ef}
			latest := backwardCandidate(rel, early, cals.For(out.Tasks[rel.SuccessorID]), cal, t.DurationDays)
			if slack := cal.WorkingDaysBetween(d.ef, latest); slack < free {
				free = slack
			}
		}
		free = max(0, min(free, total))

		es, ef := d.es, d.ef
		t.StartDate, t.EndDate = &es, &ef
		t.Schedule = &models.TaskSchedule{
			EarlyStart:  d.es,
			EarlyFinish: d.ef,
			LateStart:   d.ls,
			LateFinish:  d.lf,
			TotalFloat:  total,
			FreeFloat:   free,
			IsCritical:  total == 0,
			Version:     out.Version,
		}
		floats[id] = total
	}

	out.FloatPaths = sc.floatPaths(out, order, floats)
	return out, nil
}

// forwardCandidate is the earliest start a relationship allows for its
// successor. Lag is counted on the successor's calendar.
func forwardCandidate(rel models.TaskRelationship, pred *cpmDates, cal *WorkCalendar, dur int) time.Time {
	switch rel.Type {
	case models.StartToStart:
		return cal.AddWorkingDays(pred.es, rel.LagDays)
	case models.FinishToFinish:
		return cal.AddWorkingDays(cal.AddWorkingDays(pred.ef, rel.LagDays), -dur)
	case models.StartToFinish:
		return cal.AddWorkingDays(cal.AddWorkingDays(pred.es, rel.LagDays), -dur)
	default:
		return cal.AddWorkingDays(pred.ef, rel.LagDays)
	}
}

// backwardCandidate is the latest finish a relationship allows for its
// predecessor, given the successor's late dates. Lag is undone on the
// successor's calendar and the result is floored onto the predecessor's.
func backwardCandidate(rel models.TaskRelationship, succ *cpmDates, succCal, cal *WorkCalendar, dur int) time.Time {
	switch rel.Type {
	case models.StartToStart:
		return cal.AddWorkingDays(cal.PrevWorkingDay(succCal.AddWorkingDays(succ.ls, -rel.LagDays)), dur)
	case models.FinishToFinish:
		return cal.PrevWorkingDay(succCal.AddWorkingDays(succ.lf, -rel.LagDays))
	case models.StartToFinish:
		return cal.AddWorkingDays(cal.PrevWorkingDay(succCal.AddWorkingDays(succ.lf, -rel.LagDays)), dur)
	default:
		return cal.PrevWorkingDay(succCal.AddWorkingDays(succ.ls, -rel.LagDays))
	}
}

// floatPaths enumerates every maximal path through the tasks whose total
// float equals the project minimum, following only edges between such
// tasks. Paths start in topological order and stop at the cap.
func (sc *Scheduler) floatPaths(s *Schedule, order []string, floats map[string]int) []models.FloatPath {
	minFloat := floats[order[0]]
	for _, f := range floats {
		if f < minFloat {
			minFloat = f
		}
	}
	limit := sc.maxFloatPaths
	if s.Project.Settings.MaxFloatPaths > 0 {
		limit = s.Project.Settings.MaxFloatPaths
	}

	onPath := func(id string) bool { return floats[id] == minFloat }
	next := func(id string) []string {
		var out []string
		for _, rel := range s.Graph.SuccessorsOf(id) {
			if onPath(rel.SuccessorID) {
				out = append(out, rel.SuccessorID)
			}
		}
		return out
	}
	isStart := func(id string) bool {
		for _, rel := range s.Graph.PredecessorsOf(id) {
			if onPath(rel.PredecessorID) {
				return false
			}
		}
		return true
	}

	var paths []models.FloatPath
	var walk func(id string, prefix []string)
	walk = func(id string, prefix []string) {
		if len(paths) >= limit {
			return
		}
		path := append(prefix[:len(prefix):len(prefix)], id)
		succs := next(id)
		if len(succs) == 0 {
			paths = append(paths, models.FloatPath{
				ProjectID:       s.Project.ID,
				Ordinal:         len(paths) + 1,
				TotalFloat:      minFloat,
				TaskIDs:         path,
				ScheduleVersion: s.Version,
			})
			return
		}
		for _, n := range succs {
			walk(n, path)
		}
	}

	for _, id := range order {
		if onPath(id) && isStart(id) {
			walk(id, nil)
		}
	}
	return paths
}
