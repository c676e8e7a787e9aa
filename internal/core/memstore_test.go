package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var errInjected = errors.New("injected write failure")

// memStore is an in-memory ScheduleStore for service tests. failOn names
// a method that returns errInjected; hooks run after the named method.
type memStore struct {
	mu          sync.Mutex
	projects    map[string]models.Project
	tasks       map[string][]models.Task
	rels        map[string][]models.TaskRelationship
	calendars   map[string]models.Calendar
	baselines   map[string][]models.Baseline
	paths       map[string][]models.FloatPath
	loops       map[string][]models.ScheduleLoop
	assignments map[string][]models.ResourceAssignment
	resources   map[string]models.Resource

	failOn string
	hooks  map[string]func()
	writes int
}

func newMemStore() *memStore {
	return &memStore{
		projects:    map[string]models.Project{},
		tasks:       map[string][]models.Task{},
		rels:        map[string][]models.TaskRelationship{},
		calendars:   map[string]models.Calendar{},
		baselines:   map[string][]models.Baseline{},
		paths:       map[string][]models.FloatPath{},
		loops:       map[string][]models.ScheduleLoop{},
		assignments: map[string][]models.ResourceAssignment{},
		resources:   map[string]models.Resource{},
		hooks:       map[string]func(){},
	}
}

func (m *memStore) check(op string) error {
	m.writes++
	if m.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (m *memStore) after(op string) {
	if h, ok := m.hooks[op]; ok {
		delete(m.hooks, op)
		m.mu.Unlock()
		h()
		m.mu.Lock()
	}
}

func (m *memStore) LoadProject(id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *memStore) SaveProject(p models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SaveProject"); err != nil {
		return err
	}
	m.projects[p.ID] = p
	return nil
}

func (m *memStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	delete(m.projects, id)
	delete(m.tasks, id)
	delete(m.rels, id)
	delete(m.baselines, id)
	delete(m.paths, id)
	delete(m.loops, id)
	delete(m.assignments, id)
	return nil
}

func (m *memStore) ListProjects() ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) LoadTasks(projectID string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Task, len(m.tasks[projectID]))
	for i, t := range m.tasks[projectID] {
		out[i] = t.Clone()
	}
	m.after("LoadTasks")
	return out, nil
}

func (m *memStore) SaveTasks(projectID string, tasks []models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SaveTasks"); err != nil {
		return err
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	m.tasks[projectID] = out
	return nil
}

func (m *memStore) LoadRelationships(projectID string) ([]models.TaskRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TaskRelationship(nil), m.rels[projectID]...), nil
}

func (m *memStore) SaveRelationships(projectID string, rels []models.TaskRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SaveRelationships"); err != nil {
		return err
	}
	m.rels[projectID] = append([]models.TaskRelationship(nil), rels...)
	return nil
}

func (m *memStore) LoadCalendar(id string) (*models.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calendars[id]
	if !ok {
		return nil, fmt.Errorf("calendar %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *memStore) SaveCalendar(c models.Calendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendars[c.ID] = c
	return nil
}

func (m *memStore) ListCalendars() ([]models.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Calendar, 0, len(m.calendars))
	for _, c := range m.calendars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SaveBaseline(b models.Baseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselines[b.ProjectID] = append(m.baselines[b.ProjectID], b)
	return nil
}

func (m *memStore) LoadBaselines(projectID string) ([]models.Baseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Baseline(nil), m.baselines[projectID]...), nil
}

func (m *memStore) SaveFloatPaths(projectID string, paths []models.FloatPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SaveFloatPaths"); err != nil {
		return err
	}
	m.paths[projectID] = append([]models.FloatPath(nil), paths...)
	return nil
}

func (m *memStore) LoadFloatPaths(projectID string) ([]models.FloatPath, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FloatPath(nil), m.paths[projectID]...), nil
}

func (m *memStore) SaveScheduleLoop(l models.ScheduleLoop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loops[l.ProjectID] = append(m.loops[l.ProjectID], l)
	return nil
}

func (m *memStore) LoadScheduleLoops(projectID string) ([]models.ScheduleLoop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScheduleLoop(nil), m.loops[projectID]...), nil
}

func (m *memStore) LoadAssignments(projectID string) ([]models.ResourceAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ResourceAssignment(nil), m.assignments[projectID]...), nil
}

func (m *memStore) SaveAssignments(projectID string, as []models.ResourceAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SaveAssignments"); err != nil {
		return err
	}
	m.assignments[projectID] = append([]models.ResourceAssignment(nil), as...)
	return nil
}

func (m *memStore) SaveResource(r models.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = r
	return nil
}

func (m *memStore) ListResources() ([]models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r)
	}
	return out, nil
}

// txMemStore adds Atomically by staging writes on a copy. Sessions are
// serialized and a session that wrote nothing is not counted as a commit.
type txMemStore struct {
	*memStore
	session  sync.Mutex
	sessions int
	commits  int
}

func (t *txMemStore) Atomically(fn func(tx ScheduleStore) error) error {
	t.session.Lock()
	defer t.session.Unlock()
	t.sessions++

	t.mu.Lock()
	stage := t.snapshot()
	stage.failOn = t.failOn
	t.mu.Unlock()

	if err := fn(stage); err != nil {
		return err
	}
	if stage.writes == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.projects = stage.projects
	t.tasks = stage.tasks
	t.rels = stage.rels
	t.paths = stage.paths
	t.assignments = stage.assignments
	t.commits++
	return nil
}

func (m *memStore) snapshot() *memStore {
	c := newMemStore()
	for k, v := range m.projects {
		c.projects[k] = v
	}
	for k, v := range m.tasks {
		c.tasks[k] = append([]models.Task(nil), v...)
	}
	for k, v := range m.rels {
		c.rels[k] = append([]models.TaskRelationship(nil), v...)
	}
	for k, v := range m.calendars {
		c.calendars[k] = v
	}
	for k, v := range m.paths {
		c.paths[k] = append([]models.FloatPath(nil), v...)
	}
	for k, v := range m.assignments {
		c.assignments[k] = append([]models.ResourceAssignment(nil), v...)
	}
	for k, v := range m.baselines {
		c.baselines[k] = append([]models.Baseline(nil), v...)
	}
	for k, v := range m.loops {
		c.loops[k] = append([]models.ScheduleLoop(nil), v...)
	}
	for k, v := range m.resources {
		c.resources[k] = v
	}
	return c
}
