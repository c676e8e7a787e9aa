package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// DefaultBusyTimeout bounds how long a mutation waits for its project.
const DefaultBusyTimeout = 5 * time.Second

// ScheduleMetrics receives counters from the service. Defining it here
// avoids importing the observability package.
type ScheduleMetrics interface {
	MutationDone(op string, err error)
	RecomputeDone(projectID string, tasks int, elapsed time.Duration)
	LoopRejected(projectID string)
}

// ProjectInput describes a new project.
type ProjectInput struct {
	Name          string
	Description   string
	ProjectType   string
	AnchorDate    time.Time
	CalendarID    string
	MaxFloatPaths int
}

// ScheduleService is the only way schedule state changes. Every mutation
// validates against a cloned snapshot, recomputes it and persists it as
// one unit, serialized per project.
type ScheduleService interface {
	CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error)
	UpdateSettings(ctx context.Context, projectID string, settings models.ScheduleSettings) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	ListProjects() ([]models.Project, error)

	SaveCalendar(ctx context.Context, cal models.Calendar) error
	ListCalendars() ([]models.Calendar, error)

	CreateTask(ctx context.Context, projectID string, task models.Task) (*models.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, update TaskUpdate) (*models.Task, error)
	MoveTask(ctx context.Context, projectID, taskID, newParentID string) (*models.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID string, cascade bool) (*DeleteResult, error)
	BulkCreateTasks(ctx context.Context, projectID string, tasks []models.Task) ([]models.Task, error)
	ImportWBS(ctx context.Context, projectID string, payload []byte) ([]models.Task, error)

	AddRelationship(ctx context.Context, rel models.TaskRelationship) (*models.TaskRelationship, error)
	UpdateRelationship(ctx context.Context, projectID, predID, succID string, typ models.RelationType, lag int) (*models.TaskRelationship, error)
	RemoveRelationship(ctx context.Context, projectID, predID, succID string) error

	AssignResource(ctx context.Context, projectID string, assignment models.ResourceAssignment) (*models.ResourceAssignment, error)

	Recompute(ctx context.Context, projectID string) (*Schedule, error)
	CaptureBaseline(ctx context.Context, projectID, name string) (*models.Baseline, error)
	CompareToBaseline(ctx context.Context, projectID, baselineRef string) (*models.VarianceReport, error)
	GetSchedule(ctx context.Context, projectID string) (*Schedule, error)
	ScheduleLoops(projectID string) ([]models.ScheduleLoop, error)
}

// ServiceOptions configures a ScheduleService. Zero values select the
// defaults; Logger, Events and Metrics may be nil.
type ServiceOptions struct {
	BusyTimeout       time.Duration
	MaxFloatPaths     int
	DefaultCalendarID string
	Logger            *slog.Logger
	Events            EventLogger
	Metrics           ScheduleMetrics
	Now               func() time.Time
	NewID             func() string
}

// scheduleService implements ScheduleService on top of a ScheduleStore.
type scheduleService struct {
	store     ScheduleStore
	scheduler *Scheduler
	slots     *projectSlots
	opts      ServiceOptions
	logger    *slog.Logger
}

// NewScheduleService creates a ScheduleService with all dependencies
// injected.
func NewScheduleService(store ScheduleStore, opts ServiceOptions) ScheduleService {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	if opts.DefaultCalendarID == "" {
		opts.DefaultCalendarID = DefaultCalendarID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &scheduleService{
		store:     store,
		scheduler: NewScheduler(opts.MaxFloatPaths),
		slots:     newProjectSlots(),
		opts:      opts,
		logger:    logger,
	}
}

// projectSlots hands out one single-entry slot per project. Holding the
// slot is what serializes mutations of that project.
type projectSlots struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newProjectSlots() *projectSlots {
	return &projectSlots{slots: make(map[string]chan struct{})}
}

func (p *projectSlots) slot(projectID string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.slots[projectID]
	if !ok {
		ch = make(chan struct{}, 1)
		p.slots[projectID] = ch
	}
	return ch
}

// acquire waits up to timeout (or the context deadline) for the project's
// slot and fails with ScheduleBusy when it does not come free.
func (p *projectSlots) acquire(ctx context.Context, projectID string, timeout time.Duration) (func(), error) {
	ch := p.slot(projectID)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, newError(CodeScheduleBusy, "project %q is busy with another change (waited %s)", projectID, timeout)
	case <-ctx.Done():
		return nil, newError(CodeScheduleBusy, "project %q is busy with another change: %v", projectID, ctx.Err())
	}
}

func (s *scheduleService) event(eventType string, data map[string]any) {
	if s.opts.Events == nil {
		return
	}
	if err := s.opts.Events.LogEvent(eventType, data); err != nil {
		s.logger.Warn("event log write failed", "event", eventType, "error", err)
	}
}

func recomputedEvent(sched *Schedule, trigger string) map[string]any {
	return map[string]any{
		"project_id":  sched.Project.ID,
		"version":     sched.Version,
		"task_count":  len(sched.Tasks),
		"float_paths": len(sched.FloatPaths),
		"finish":      finishDate(sched),
		"trigger":     trigger,
	}
}

// finishDate is the project finish as YYYY-MM-DD, or "" when nothing is
// scheduled yet.
func finishDate(sched *Schedule) string {
	f, ok := sched.ProjectFinish()
	if !ok {
		return ""
	}
	return f.Format("2006-01-02")
}

func (s *scheduleService) done(op string, err error) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.MutationDone(op, err)
	}
	if err == nil {
		return
	}
	switch {
	case IsValidation(err):
		s.logger.Info("mutation rejected", "op", op, "error", err)
	case IsConcurrency(err):
		s.logger.Warn("mutation not applied", "op", op, "error", err)
	default:
		s.logger.Error("mutation failed", "op", op, "error", err)
	}
}

// readSession runs fn against a single store session when the store has
// one, so that every read in fn sees the same committed state.
func (s *scheduleService) readSession(fn func(st ScheduleStore) error) error {
	if tx, ok := s.store.(TxStore); ok {
		return tx.Atomically(fn)
	}
	return fn(s.store)
}

// load reads a project and everything scheduled under it into a snapshot.
func (s *scheduleService) load(projectID string) (*Schedule, error) {
	var sched *Schedule
	err := s.readSession(func(st ScheduleStore) error {
		var err error
		sched, err = readSnapshot(st, projectID)
		return err
	})
	return sched, err
}

func readSnapshot(st ScheduleStore, projectID string) (*Schedule, error) {
	project, err := st.LoadProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	tasks, err := st.LoadTasks(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	rels, err := st.LoadRelationships(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	cals, err := st.ListCalendars()
	if err != nil {
		return nil, fmt.Errorf("loading calendars: %w", err)
	}
	assignments, err := st.LoadAssignments(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}
	paths, err := st.LoadFloatPaths(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading float paths: %w", err)
	}

	sched, err := NewSchedule(*project, tasks, rels, cals, assignments)
	if err != nil {
		return nil, fmt.Errorf("loading schedule: %w", err)
	}
	sched.FloatPaths = paths
	return sched, nil
}

// writeSnapshot saves every part of a snapshot. The project goes last so
// that its version only moves once the rest is in place.
func writeSnapshot(st ScheduleStore, sched *Schedule) error {
	id := sched.Project.ID
	if err := st.SaveTasks(id, sched.TaskList()); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	if err := st.SaveRelationships(id, sched.Relationships()); err != nil {
		return fmt.Errorf("saving relationships: %w", err)
	}
	if err := st.SaveAssignments(id, sched.Assignments); err != nil {
		return fmt.Errorf("saving assignments: %w", err)
	}
	if err := st.SaveFloatPaths(id, sched.FloatPaths); err != nil {
		return fmt.Errorf("saving float paths: %w", err)
	}
	if err := st.SaveProject(sched.Project); err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	return nil
}

// persist writes next inside the store's transaction when it has one.
// Otherwise a failed write is undone by writing prev back.
func (s *scheduleService) persist(prev, next *Schedule) error {
	if tx, ok := s.store.(TxStore); ok {
		return tx.Atomically(func(st ScheduleStore) error {
			return writeSnapshot(st, next)
		})
	}
	if err := writeSnapshot(s.store, next); err != nil {
		if rbErr := writeSnapshot(s.store, prev); rbErr != nil {
			return errors.Join(err, fmt.Errorf("restoring previous schedule: %w", rbErr))
		}
		return err
	}
	return nil
}

// recompute schedules next in place. Projects without tasks have nothing
// to schedule and simply lose their float paths.
func (s *scheduleService) recompute(next *Schedule) (*Schedule, error) {
	if len(next.Tasks) == 0 {
		next.FloatPaths = nil
		return next, nil
	}
	start := time.Now()
	out, err := s.scheduler.Compute(next)
	if err != nil {
		return nil, err
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecomputeDone(next.Project.ID, len(out.Tasks), time.Since(start))
	}
	return out, nil
}

// mutate runs fn against a clone of the project's schedule while holding
// the project slot, then recomputes and persists the clone as the next
// version. Nothing is written if fn, the recompute or the write fails.
func (s *scheduleService) mutate(ctx context.Context, projectID, op string, fn func(next *Schedule) error) (*Schedule, error) {
	release, err := s.slots.acquire(ctx, projectID, s.opts.BusyTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next.Version = current.Version + 1
	next.Project.ScheduleVersion = next.Version
	next.Project.UpdatedAt = s.opts.Now().UTC()
	computed, err := s.recompute(next)
	if err != nil {
		return nil, err
	}
	if err := s.persist(current, computed); err != nil {
		return nil, fmt.Errorf("persisting schedule: %w", err)
	}

	s.logger.Info("schedule committed", "op", op, "project", projectID,
		"version", computed.Version, "tasks", len(computed.Tasks))
	s.event("schedule.recomputed", recomputedEvent(computed, op))
	return computed, nil
}

func (s *scheduleService) CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	p, err := s.createProject(ctx, in)
	s.done("create_project", err)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return p, nil
}

func (s *scheduleService) createProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newError(CodeInvalidInput, "project name is required")
	}
	calID := in.CalendarID
	if calID == "" {
		calID = s.opts.DefaultCalendarID
	}
	if err := s.checkCalendar(calID); err != nil {
		return nil, err
	}
	if in.MaxFloatPaths < 0 {
		return nil, newError(CodeInvalidInput, "max float paths must not be negative")
	}
	now := s.opts.Now().UTC()
	anchor := in.AnchorDate
	if anchor.IsZero() {
		anchor = now
	}

	id := s.opts.NewID()
	p := models.Project{
		ID:          id,
		Name:        name,
		Description: in.Description,
		ProjectType: in.ProjectType,
		Settings: models.ScheduleSettings{
			ProjectID:     id,
			AnchorDate:    DateOf(anchor),
			CalendarID:    calID,
			MaxFloatPaths: in.MaxFloatPaths,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	release, err := s.slots.acquire(ctx, id, s.opts.BusyTimeout)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := s.store.SaveProject(p); err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	s.logger.Info("project created", "project", id, "name", name)
	s.event("project.created", map[string]any{"project_id": id, "name": name})
	return &p, nil
}

func (s *scheduleService) checkCalendar(calID string) error {
	if calID == DefaultCalendarID {
		return nil
	}
	if _, err := s.store.LoadCalendar(calID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(CodeInvalidInput, "calendar %q does not exist", calID)
		}
		return fmt.Errorf("loading calendar: %w", err)
	}
	return nil
}

func (s *scheduleService) UpdateSettings(ctx context.Context, projectID string, settings models.ScheduleSettings) (*models.Project, error) {
	if settings.CalendarID != "" {
		if err := s.checkCalendar(settings.CalendarID); err != nil {
			s.done("update_settings", err)
			return nil, fmt.Errorf("updating settings: %w", err)
		}
	}
	sched, err := s.mutate(ctx, projectID, "update_settings", func(next *Schedule) error {
		cur := &next.Project.Settings
		if !settings.AnchorDate.IsZero() {
			cur.AnchorDate = DateOf(settings.AnchorDate)
		}
		if settings.CalendarID != "" {
			cur.CalendarID = settings.CalendarID
		}
		if settings.MaxFloatPaths < 0 {
			return newError(CodeInvalidInput, "max float paths must not be negative")
		}
		if settings.MaxFloatPaths > 0 {
			cur.MaxFloatPaths = settings.MaxFloatPaths
		}
		return nil
	})
	s.done("update_settings", err)
	if err != nil {
		return nil, fmt.Errorf("updating settings: %w", err)
	}
	return &sched.Project, nil
}

func (s *scheduleService) DeleteProject(ctx context.Context, projectID string) error {
	err := s.deleteProject(ctx, projectID)
	s.done("delete_project", err)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

func (s *scheduleService) deleteProject(ctx context.Context, projectID string) error {
	release, err := s.slots.acquire(ctx, projectID, s.opts.BusyTimeout)
	if err != nil {
		return err
	}
	defer release()
	if err := s.store.DeleteProject(projectID); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project", projectID)
	s.event("project.deleted", map[string]any{"project_id": projectID})
	return nil
}

func (s *scheduleService) ListProjects() ([]models.Project, error) {
	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// SaveCalendar validates and stores a calendar, then recomputes every
// project that schedules on it.
func (s *scheduleService) SaveCalendar(ctx context.Context, cal models.Calendar) error {
	err := s.saveCalendar(ctx, cal)
	s.done("save_calendar", err)
	if err != nil {
		return fmt.Errorf("saving calendar: %w", err)
	}
	return nil
}

func (s *scheduleService) saveCalendar(ctx context.Context, cal models.Calendar) error {
	if strings.TrimSpace(cal.ID) == "" {
		return newError(CodeInvalidInput, "calendar ID is required")
	}
	if _, err := NewWorkCalendar(cal); err != nil {
		return err
	}
	for i := range cal.Exceptions {
		cal.Exceptions[i].Date = DateOf(cal.Exceptions[i].Date)
	}
	sort.Slice(cal.Exceptions, func(i, j int) bool { return cal.Exceptions[i].Date.Before(cal.Exceptions[j].Date) })
	if err := s.store.SaveCalendar(cal); err != nil {
		return err
	}
	s.event("calendar.saved", map[string]any{"calendar_id": cal.ID, "exceptions": len(cal.Exceptions)})

	projects, err := s.store.ListProjects()
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}
	var errs []error
	for _, p := range projects {
		uses, err := s.usesCalendar(p, cal.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !uses {
			continue
		}
		if _, err := s.mutate(ctx, p.ID, "calendar_changed", func(*Schedule) error { return nil }); err != nil {
			errs = append(errs, fmt.Errorf("rescheduling project %s: %w", p.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *scheduleService) usesCalendar(p models.Project, calID string) (bool, error) {
	if p.Settings.CalendarID == calID {
		return true, nil
	}
	tasks, err := s.store.LoadTasks(p.ID)
	if err != nil {
		return false, fmt.Errorf("loading tasks of %s: %w", p.ID, err)
	}
	for _, t := range tasks {
		if t.CalendarID == calID {
			return true, nil
		}
	}
	return false, nil
}

func (s *scheduleService) ListCalendars() ([]models.Calendar, error) {
	cals, err := s.store.ListCalendars()
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}
	for _, c := range cals {
		if c.ID == DefaultCalendarID {
			return cals, nil
		}
	}
	return append([]models.Calendar{StandardCalendar()}, cals...), nil
}

func (s *scheduleService) CreateTask(ctx context.Context, projectID string, task models.Task) (*models.Task, error) {
	if task.ID == "" {
		task.ID = s.opts.NewID()
	}
	task.ProjectID = projectID
	sched, err := s.mutate(ctx, projectID, "create_task", func(next *Schedule) error {
		_, err := next.InsertTask(task)
		return err
	})
	s.done("create_task", err)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	created := sched.Tasks[task.ID].Clone()
	s.event("task.created", map[string]any{"project_id": projectID, "task_id": created.ID, "wbs_code": created.WBSCode})
	return &created, nil
}

func (s *scheduleService) UpdateTask(ctx context.Context, projectID, taskID string, update TaskUpdate) (*models.Task, error) {
	sched, err := s.mutate(ctx, projectID, "update_task", func(next *Schedule) error {
		_, err := next.UpdateTask(taskID, update)
		return err
	})
	s.done("update_task", err)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	updated := sched.Tasks[taskID].Clone()
	s.event("task.updated", map[string]any{"project_id": projectID, "task_id": taskID})
	return &updated, nil
}

func (s *scheduleService) MoveTask(ctx context.Context, projectID, taskID, newParentID string) (*models.Task, error) {
	var changed []string
	sched, err := s.mutate(ctx, projectID, "move_task", func(next *Schedule) error {
		var err error
		changed, err = next.Hierarchy().MoveTask(taskID, newParentID)
		return err
	})
	s.done("move_task", err)
	if err != nil {
		return nil, fmt.Errorf("moving task: %w", err)
	}
	moved := sched.Tasks[taskID].Clone()
	s.event("task.moved", map[string]any{
		"project_id": projectID, "task_id": taskID, "parent_id": newParentID,
		"wbs_code": moved.WBSCode, "renumbered": len(changed),
	})
	return &moved, nil
}

func (s *scheduleService) DeleteTask(ctx context.Context, projectID, taskID string, cascade bool) (*DeleteResult, error) {
	var res *DeleteResult
	_, err := s.mutate(ctx, projectID, "delete_task", func(next *Schedule) error {
		var err error
		res, err = next.DeleteTask(taskID, cascade)
		return err
	})
	s.done("delete_task", err)
	if err != nil {
		return nil, fmt.Errorf("deleting task: %w", err)
	}
	s.event("task.deleted", map[string]any{
		"project_id": projectID, "task_id": taskID, "cascade": cascade,
		"tasks_removed": len(res.TaskIDs), "relationships_removed": len(res.Relationships),
	})
	return res, nil
}

// BulkCreateTasks inserts a batch as one mutation: one invalid item
// rejects the whole batch. Items are inserted in WBS order so that
// parents exist before their children.
func (s *scheduleService) BulkCreateTasks(ctx context.Context, projectID string, tasks []models.Task) ([]models.Task, error) {
	created, err := s.bulkCreate(ctx, projectID, "bulk_create_tasks", tasks)
	s.done("bulk_create_tasks", err)
	if err != nil {
		return nil, fmt.Errorf("creating tasks: %w", err)
	}
	return created, nil
}

func (s *scheduleService) bulkCreate(ctx context.Context, projectID, op string, tasks []models.Task) ([]models.Task, error) {
	if len(tasks) == 0 {
		return nil, newError(CodeInvalidInput, "no tasks to create")
	}
	batch := make([]models.Task, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = s.opts.NewID()
		}
		t.ProjectID = projectID
		batch[i] = t
	}
	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].WBSCode == "" || batch[j].WBSCode == "" {
			return batch[i].WBSCode != "" && batch[j].WBSCode == ""
		}
		return CompareWBSCodes(batch[i].WBSCode, batch[j].WBSCode) < 0
	})

	sched, err := s.mutate(ctx, projectID, op, func(next *Schedule) error {
		for i, t := range batch {
			if _, err := next.InsertTask(t); err != nil {
				return fmt.Errorf("item %d (%s): %w", i+1, t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Task, len(batch))
	for i, t := range batch {
		out[i] = sched.Tasks[t.ID].Clone()
	}
	s.event("task.bulk_created", map[string]any{"project_id": projectID, "count": len(out), "source": op})
	return out, nil
}

// ImportWBS parses a WBS generator payload and inserts it as one batch.
func (s *scheduleService) ImportWBS(ctx context.Context, projectID string, payload []byte) ([]models.Task, error) {
	created, err := s.importWBS(ctx, projectID, payload)
	s.done("import_wbs", err)
	if err != nil {
		return nil, fmt.Errorf("importing WBS: %w", err)
	}
	return created, nil
}

func (s *scheduleService) importWBS(ctx context.Context, projectID string, payload []byte) ([]models.Task, error) {
	cands, err := ParseWBSCandidates(payload)
	if err != nil {
		return nil, err
	}
	tasks := make([]models.Task, len(cands))
	for i, c := range cands {
		tasks[i] = c.Task(s.opts.NewID(), projectID)
	}
	return s.bulkCreate(ctx, projectID, "import_wbs", tasks)
}

// AddRelationship inserts a dependency edge. An edge that would close a
// loop is rejected and the loop is recorded for reporting.
func (s *scheduleService) AddRelationship(ctx context.Context, rel models.TaskRelationship) (*models.TaskRelationship, error) {
	if rel.ID == "" {
		rel.ID = s.opts.NewID()
	}
	if rel.Type == "" {
		rel.Type = models.FinishToStart
	}
	_, err := s.mutate(ctx, rel.ProjectID, "add_relationship", func(next *Schedule) error {
		return next.Graph.AddEdge(rel)
	})
	if loop, ok := LoopFromError(err); ok {
		loop.ID = s.opts.NewID()
		loop.ProjectID = rel.ProjectID
		loop.DetectedAt = s.opts.Now().UTC()
		if saveErr := s.store.SaveScheduleLoop(*loop); saveErr != nil {
			s.logger.Warn("recording schedule loop failed", "project", rel.ProjectID, "error", saveErr)
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.LoopRejected(rel.ProjectID)
		}
		s.event("loop.rejected", map[string]any{
			"project_id": rel.ProjectID, "loop_id": loop.ID, "task_ids": loop.TaskIDs,
		})
	}
	s.done("add_relationship", err)
	if err != nil {
		return nil, fmt.Errorf("adding relationship: %w", err)
	}
	s.event("relationship.added", map[string]any{
		"project_id": rel.ProjectID, "predecessor_id": rel.PredecessorID,
		"successor_id": rel.SuccessorID, "type": string(rel.Type), "lag_days": rel.LagDays,
	})
	return &rel, nil
}

func (s *scheduleService) UpdateRelationship(ctx context.Context, projectID, predID, succID string, typ models.RelationType, lag int) (*models.TaskRelationship, error) {
	var updated models.TaskRelationship
	_, err := s.mutate(ctx, projectID, "update_relationship", func(next *Schedule) error {
		if err := next.Graph.UpdateEdge(predID, succID, typ, lag); err != nil {
			return err
		}
		updated, _ = next.Graph.Edge(predID, succID)
		return nil
	})
	s.done("update_relationship", err)
	if err != nil {
		return nil, fmt.Errorf("updating relationship: %w", err)
	}
	s.event("relationship.updated", map[string]any{
		"project_id": projectID, "predecessor_id": predID, "successor_id": succID,
		"type": string(typ), "lag_days": lag,
	})
	return &updated, nil
}

func (s *scheduleService) RemoveRelationship(ctx context.Context, projectID, predID, succID string) error {
	_, err := s.mutate(ctx, projectID, "remove_relationship", func(next *Schedule) error {
		_, err := next.Graph.RemoveEdge(predID, succID)
		return err
	})
	s.done("remove_relationship", err)
	if err != nil {
		return fmt.Errorf("removing relationship: %w", err)
	}
	s.event("relationship.removed", map[string]any{
		"project_id": projectID, "predecessor_id": predID, "successor_id": succID,
	})
	return nil
}

func (s *scheduleService) AssignResource(ctx context.Context, projectID string, a models.ResourceAssignment) (*models.ResourceAssignment, error) {
	if a.ID == "" {
		a.ID = s.opts.NewID()
	}
	a.ProjectID = projectID
	_, err := s.mutate(ctx, projectID, "assign_resource", func(next *Schedule) error {
		return next.AddAssignment(a)
	})
	s.done("assign_resource", err)
	if err != nil {
		return nil, fmt.Errorf("assigning resource: %w", err)
	}
	s.event("resource.assigned", map[string]any{
		"project_id": projectID, "task_id": a.TaskID, "resource_id": a.ResourceID, "allocation": a.Allocation,
	})
	return &a, nil
}

// Recompute schedules the project from a versioned read without holding
// the slot, then commits only if no other change landed in the meantime.
// A superseded result is discarded with StaleRecompute.
func (s *scheduleService) Recompute(ctx context.Context, projectID string) (*Schedule, error) {
	sched, err := s.recomputeVersioned(ctx, projectID)
	s.done("recompute", err)
	if err != nil {
		return nil, fmt.Errorf("recomputing schedule: %w", err)
	}
	return sched, nil
}

func (s *scheduleService) recomputeVersioned(ctx context.Context, projectID string) (*Schedule, error) {
	current, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	next.Version = current.Version + 1
	next.Project.ScheduleVersion = next.Version
	next.Project.UpdatedAt = s.opts.Now().UTC()

	start := time.Now()
	computed, err := s.scheduler.Compute(next)
	if err != nil {
		return nil, err
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecomputeDone(projectID, len(computed.Tasks), time.Since(start))
	}

	release, err := s.slots.acquire(ctx, projectID, s.opts.BusyTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	latest, err := s.store.LoadProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	if latest.ScheduleVersion != current.Version {
		s.event("schedule.stale", map[string]any{
			"project_id": projectID, "read_version": current.Version, "current_version": latest.ScheduleVersion,
		})
		return nil, newError(CodeStaleRecompute, "project %q moved from version %d to %d during recompute",
			projectID, current.Version, latest.ScheduleVersion)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.persist(current, computed); err != nil {
		return nil, fmt.Errorf("persisting schedule: %w", err)
	}
	s.logger.Info("schedule committed", "op", "recompute", "project", projectID,
		"version", computed.Version, "tasks", len(computed.Tasks))
	s.event("schedule.recomputed", recomputedEvent(computed, "recompute"))
	return computed, nil
}

// CaptureBaseline snapshots the committed schedule. It takes the project
// slot so that it never observes a half-applied mutation.
func (s *scheduleService) CaptureBaseline(ctx context.Context, projectID, name string) (*models.Baseline, error) {
	b, err := s.captureBaseline(ctx, projectID, name)
	s.done("capture_baseline", err)
	if err != nil {
		return nil, fmt.Errorf("capturing baseline: %w", err)
	}
	return b, nil
}

func (s *scheduleService) captureBaseline(ctx context.Context, projectID, name string) (*models.Baseline, error) {
	release, err := s.slots.acquire(ctx, projectID, s.opts.BusyTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	sched, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.LoadBaselines(projectID)
	if err != nil {
		return nil, fmt.Errorf("loading baselines: %w", err)
	}
	b, err := CaptureBaseline(sched, s.opts.NewID(), name, existing, s.opts.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveBaseline(*b); err != nil {
		return nil, fmt.Errorf("saving baseline: %w", err)
	}
	s.logger.Info("baseline captured", "project", projectID, "baseline", b.ID, "name", b.Name)
	s.event("baseline.captured", map[string]any{
		"project_id": projectID, "baseline_id": b.ID, "name": b.Name, "entries": len(b.Entries),
		"finish": finishDate(sched),
	})
	return b, nil
}

// CompareToBaseline compares the committed schedule with a baseline given
// by ID or name. It reads one store session without taking the slot.
func (s *scheduleService) CompareToBaseline(ctx context.Context, projectID, baselineRef string) (*models.VarianceReport, error) {
	var (
		sched     *Schedule
		baselines []models.Baseline
	)
	err := s.readSession(func(st ScheduleStore) error {
		var err error
		if sched, err = readSnapshot(st, projectID); err != nil {
			return err
		}
		if baselines, err = st.LoadBaselines(projectID); err != nil {
			return fmt.Errorf("loading baselines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("comparing to baseline: %w", err)
	}
	var found *models.Baseline
	for i := range baselines {
		if baselines[i].ID == baselineRef || strings.EqualFold(baselines[i].Name, baselineRef) {
			found = &baselines[i]
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("comparing to baseline: baseline %q: %w", baselineRef, ErrNotFound)
	}
	report, err := CompareToBaseline(sched, found, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("comparing to baseline: %w", err)
	}
	return report, nil
}

// GetSchedule returns the committed snapshot, read in one store session,
// without taking the slot.
func (s *scheduleService) GetSchedule(ctx context.Context, projectID string) (*Schedule, error) {
	sched, err := s.load(projectID)
	if err != nil {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}
	return sched, nil
}

func (s *scheduleService) ScheduleLoops(projectID string) ([]models.ScheduleLoop, error) {
	loops, err := s.store.LoadScheduleLoops(projectID)
	if err != nil {
		return nil, fmt.Errorf("listing schedule loops: %w", err)
	}
	return loops, nil
}
