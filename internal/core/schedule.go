package core

import (
	"sort"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// DefaultCalendarID names the built-in Monday to Friday calendar used when
// a project has not stored one of its own.
const DefaultCalendarID = "standard"

// MaxDurationDays bounds task durations and the size of relationship lags,
// in working days.
const MaxDurationDays = 36500

// StandardCalendar returns the built-in calendar.
func StandardCalendar() models.Calendar {
	return models.Calendar{ID: DefaultCalendarID, Name: "Standard (Mon-Fri)", WorkWeek: models.StandardWorkWeek()}
}

// Schedule is an explicit snapshot of one project's schedule state. The
// engine keeps nothing between calls: operations clone a Schedule, change
// the clone and hand it back for persisting.
type Schedule struct {
	Project     models.Project
	Tasks       map[string]*models.Task
	Graph       *DependencyGraph
	Calendars   map[string]models.Calendar
	FloatPaths  []models.FloatPath
	Assignments []models.ResourceAssignment
	Version     uint64
}

// NewSchedule assembles a snapshot from stored records and checks the
// hierarchy and graph invariants on the way in.
func NewSchedule(project models.Project, tasks []models.Task, rels []models.TaskRelationship,
	calendars []models.Calendar, assignments []models.ResourceAssignment) (*Schedule, error) {
	s := &Schedule{
		Project:     project,
		Tasks:       make(map[string]*models.Task, len(tasks)),
		Calendars:   make(map[string]models.Calendar, len(calendars)),
		Assignments: append([]models.ResourceAssignment(nil), assignments...),
		Version:     project.ScheduleVersion,
	}
	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		t := tasks[i].Clone()
		s.Tasks[t.ID] = &t
		ids = append(ids, t.ID)
	}
	for _, c := range calendars {
		s.Calendars[c.ID] = c
	}
	if err := s.Hierarchy().Validate(); err != nil {
		return nil, err
	}
	g, err := BuildDependencyGraph(ids, rels)
	if err != nil {
		return nil, err
	}
	s.Graph = g
	return s, nil
}

// Hierarchy returns the WBS view over the snapshot's tasks.
func (s *Schedule) Hierarchy() *Hierarchy {
	return NewHierarchy(s.Tasks)
}

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{
		Project:     s.Project,
		Tasks:       make(map[string]*models.Task, len(s.Tasks)),
		Calendars:   make(map[string]models.Calendar, len(s.Calendars)),
		Assignments: append([]models.ResourceAssignment(nil), s.Assignments...),
		Version:     s.Version,
	}
	for id, t := range s.Tasks {
		tc := t.Clone()
		c.Tasks[id] = &tc
	}
	for id, cal := range s.Calendars {
		cal.Exceptions = append([]models.CalendarException(nil), cal.Exceptions...)
		c.Calendars[id] = cal
	}
	for _, fp := range s.FloatPaths {
		fp.TaskIDs = append([]string(nil), fp.TaskIDs...)
		c.FloatPaths = append(c.FloatPaths, fp)
	}
	if s.Graph != nil {
		c.Graph = s.Graph.Clone()
	} else {
		c.Graph = NewDependencyGraph()
	}
	return c
}

// TaskList returns copies of the tasks in WBS order.
func (s *Schedule) TaskList() []models.Task {
	sorted := sortedTasks(s.Tasks)
	out := make([]models.Task, len(sorted))
	for i, t := range sorted {
		out[i] = t.Clone()
	}
	return out
}

// Relationships returns every dependency edge.
func (s *Schedule) Relationships() []models.TaskRelationship {
	return s.Graph.Edges()
}

// CalendarSet resolves the project calendar and task overrides. The
// built-in standard calendar is used when the project's calendar is not
// stored.
func (s *Schedule) CalendarSet() (*CalendarSet, error) {
	defaultID := s.Project.Settings.CalendarID
	if defaultID == "" {
		defaultID = DefaultCalendarID
	}
	cals := make(map[string]models.Calendar, len(s.Calendars)+1)
	for id, c := range s.Calendars {
		cals[id] = c
	}
	if _, ok := cals[defaultID]; !ok && defaultID == DefaultCalendarID {
		cals[DefaultCalendarID] = StandardCalendar()
	}

	ids := make([]string, 0, len(cals))
	for id := range cals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	built := make([]*WorkCalendar, 0, len(ids))
	for _, id := range ids {
		wc, err := NewWorkCalendar(cals[id])
		if err != nil {
			return nil, err
		}
		built = append(built, wc)
	}
	return NewCalendarSet(defaultID, built...)
}

// ProjectFinish returns the latest early finish, or false when nothing has
// been scheduled.
func (s *Schedule) ProjectFinish() (time.Time, bool) {
	var finish time.Time
	found := false
	for _, t := range s.Tasks {
		if t.Schedule == nil {
			continue
		}
		if !found || t.Schedule.EarlyFinish.After(finish) {
			finish = t.Schedule.EarlyFinish
			found = true
		}
	}
	return finish, found
}

// InsertTask validates t and adds it to the snapshot. Missing pieces are
// filled in: a WBS code is allocated as the last child of the parent, the
// level follows the code and a parent is inferred from the code's prefix.
func (s *Schedule) InsertTask(t models.Task) (*models.Task, error) {
	if t.ID == "" {
		return nil, newError(CodeInvalidInput, "task ID is required")
	}
	if _, exists := s.Tasks[t.ID]; exists {
		return nil, newError(CodeInvalidInput, "task %q already exists", t.ID)
	}
	if t.Name == "" {
		return nil, newError(CodeInvalidInput, "task name is required")
	}
	if err := checkDuration(t.Name, t.DurationDays); err != nil {
		return nil, err
	}
	if t.CalendarID != "" {
		if _, ok := s.Calendars[t.CalendarID]; !ok && t.CalendarID != DefaultCalendarID {
			return nil, newError(CodeInvalidInput, "task %q: unknown calendar %q", t.Name, t.CalendarID)
		}
	}
	if t.Status == "" {
		t.Status = models.StatusNotStarted
	}
	if !t.Status.Valid() {
		return nil, newError(CodeInvalidInput, "task %q: unknown status %q", t.Name, t.Status)
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Priority.Valid() {
		return nil, newError(CodeInvalidInput, "task %q: unknown priority %q", t.Name, t.Priority)
	}

	h := s.Hierarchy()
	if t.WBSCode == "" {
		code, err := h.NextChildCode(t.ParentTaskID)
		if err != nil {
			return nil, err
		}
		t.WBSCode = code
	}
	segs, err := ParseWBSCode(t.WBSCode)
	if err != nil {
		return nil, err
	}
	if t.Level != 0 && t.Level != len(segs) {
		return nil, newError(CodeInvalidWBSCode, "task %q: level %d does not match WBS code %q", t.Name, t.Level, t.WBSCode)
	}
	t.Level = len(segs)
	if t.ParentTaskID == "" && len(segs) > 1 {
		parentCode := FormatWBSCode(segs[:len(segs)-1])
		parent, ok := h.ByCode(parentCode)
		if !ok {
			return nil, newError(CodeInvalidParent, "task %q (%s): no parent with WBS code %s", t.Name, t.WBSCode, parentCode)
		}
		t.ParentTaskID = parent.ID
	}
	if err := h.ValidateTask(&t); err != nil {
		return nil, err
	}

	t.Schedule = nil
	t.StartDate, t.EndDate = nil, nil
	stored := t.Clone()
	s.Tasks[t.ID] = &stored
	s.Graph.AddNode(t.ID)
	return &stored, nil
}

// TaskUpdate carries the editable fields of a task. Nil fields are left
// unchanged. The WBS position changes through MoveTask only.
type TaskUpdate struct {
	Name         *string
	Description  *string
	DurationDays *int
	Status       *models.TaskStatus
	Priority     *models.Priority
	CalendarID   *string
	AssignedTo   *string
}

// UpdateTask applies u to the task with the given ID.
func (s *Schedule) UpdateTask(id string, u TaskUpdate) (*models.Task, error) {
	t, ok := s.Tasks[id]
	if !ok {
		return nil, newError(CodeUnknownTask, "task %q does not exist", id)
	}
	next := t.Clone()
	if u.Name != nil {
		if *u.Name == "" {
			return nil, newError(CodeInvalidInput, "task name is required")
		}
		next.Name = *u.Name
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.DurationDays != nil {
		if err := checkDuration(next.Name, *u.DurationDays); err != nil {
			return nil, err
		}
		next.DurationDays = *u.DurationDays
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, newError(CodeInvalidInput, "task %q: unknown status %q", next.Name, *u.Status)
		}
		next.Status = *u.Status
	}
	if u.Priority != nil {
		if !u.Priority.Valid() {
			return nil, newError(CodeInvalidInput, "task %q: unknown priority %q", next.Name, *u.Priority)
		}
		next.Priority = *u.Priority
	}
	if u.CalendarID != nil {
		if calID := *u.CalendarID; calID != "" && calID != DefaultCalendarID {
			if _, ok := s.Calendars[calID]; !ok {
				return nil, newError(CodeInvalidInput, "task %q: unknown calendar %q", next.Name, calID)
			}
		}
		next.CalendarID = *u.CalendarID
	}
	if u.AssignedTo != nil {
		next.AssignedTo = *u.AssignedTo
	}
	*t = next
	return t, nil
}

// DeleteResult lists everything removed by DeleteTask.
type DeleteResult struct {
	TaskIDs       []string
	Relationships []models.TaskRelationship
	Assignments   []models.ResourceAssignment
}

// DeleteTask removes a task. Without cascade a task with children is
// refused with HasChildren. With cascade the whole subtree goes, together
// with every edge and resource assignment touching it. Checks run before
// anything is removed.
func (s *Schedule) DeleteTask(id string, cascade bool) (*DeleteResult, error) {
	if _, ok := s.Tasks[id]; !ok {
		return nil, newError(CodeUnknownTask, "task %q does not exist", id)
	}
	h := s.Hierarchy()
	descendants := h.Descendants(id)
	if len(descendants) > 0 && !cascade {
		return nil, newError(CodeHasChildren, "task %q has %d descendant(s); delete with cascade", id, len(descendants))
	}

	doomed := make(map[string]bool, len(descendants)+1)
	doomed[id] = true
	for _, d := range descendants {
		doomed[d] = true
	}

	res := &DeleteResult{
		TaskIDs:       append([]string{id}, descendants...),
		Relationships: s.Graph.EdgesTouching(doomed),
	}
	for _, tid := range res.TaskIDs {
		s.Graph.RemoveNode(tid)
		delete(s.Tasks, tid)
	}
	var kept []models.ResourceAssignment
	for _, a := range s.Assignments {
		if doomed[a.TaskID] {
			res.Assignments = append(res.Assignments, a)
			continue
		}
		kept = append(kept, a)
	}
	s.Assignments = kept
	return res, nil
}

// AddAssignment attaches a resource to a task.
func (s *Schedule) AddAssignment(a models.ResourceAssignment) error {
	if _, ok := s.Tasks[a.TaskID]; !ok {
		return newError(CodeUnknownTask, "task %q does not exist", a.TaskID)
	}
	if a.ResourceID == "" {
		return newError(CodeInvalidInput, "resource ID is required")
	}
	if a.Allocation <= 0 || a.Allocation > 1 {
		return newError(CodeInvalidInput, "allocation %.2f must be in (0, 1]", a.Allocation)
	}
	for _, existing := range s.Assignments {
		if existing.TaskID == a.TaskID && existing.ResourceID == a.ResourceID {
			return newError(CodeInvalidInput, "resource %q is already assigned to task %q", a.ResourceID, a.TaskID)
		}
	}
	s.Assignments = append(s.Assignments, a)
	return nil
}

// CriticalPath returns the tasks of the first float path, the critical
// chain when the project has one.
func (s *Schedule) CriticalPath() []string {
	if len(s.FloatPaths) == 0 {
		return nil
	}
	return append([]string(nil), s.FloatPaths[0].TaskIDs...)
}

func checkDuration(name string, days int) error {
	if days < 0 {
		return newError(CodeInvalidInput, "task %q: duration must not be negative", name)
	}
	if days > MaxDurationDays {
		return newError(CodeInvalidInput, "task %q: duration %d exceeds %d working days", name, days, MaxDurationDays)
	}
	return nil
}
