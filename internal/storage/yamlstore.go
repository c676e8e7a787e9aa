package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

const yamlFormatVersion = "1.0"

// ProjectFile is the on-disk form of one project: projects/<id>.yaml
// holds the project and every record scheduled under it.
type ProjectFile struct {
	Version       string                      `yaml:"version"`
	Project       models.Project              `yaml:"project"`
	Tasks         []models.Task               `yaml:"tasks"`
	Relationships []models.TaskRelationship   `yaml:"relationships"`
	Assignments   []models.ResourceAssignment `yaml:"assignments,omitempty"`
	FloatPaths    []models.FloatPath          `yaml:"float_paths,omitempty"`
	Baselines     []models.Baseline           `yaml:"baselines,omitempty"`
	ScheduleLoops []models.ScheduleLoop       `yaml:"schedule_loops,omitempty"`
}

// CatalogFile holds the records shared by all projects: catalog.yaml.
type CatalogFile struct {
	Version   string            `yaml:"version"`
	Calendars []models.Calendar `yaml:"calendars"`
	Resources []models.Resource `yaml:"resources"`
}

// yamlStore is a file-backed core.TxStore. Every call runs in a session
// that holds both an in-process mutex and an flock on <base>/.lock, so
// several processes can share one directory.
type yamlStore struct {
	basePath string
	mu       sync.Mutex
}

// NewYAMLStore creates a store rooted at basePath. The directory is
// created on first write.
func NewYAMLStore(basePath string) core.TxStore {
	return &yamlStore{basePath: basePath}
}

func (s *yamlStore) session(fn func(x *yamlSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.basePath, "projects"), 0o750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	unlock, err := lockFile(filepath.Join(s.basePath, ".lock"))
	if err != nil {
		return err
	}
	defer unlock()

	x := newYAMLSession(s.basePath)
	if err := fn(x); err != nil {
		return err
	}
	return x.flush()
}

func within[T any](s *yamlStore, fn func(x *yamlSession) (T, error)) (T, error) {
	var out T
	err := s.session(func(x *yamlSession) error {
		var err error
		out, err = fn(x)
		return err
	})
	return out, err
}

// Atomically runs fn against one session. Writes are staged in memory and
// reach the disk only if fn succeeds.
func (s *yamlStore) Atomically(fn func(tx core.ScheduleStore) error) error {
	return s.session(func(x *yamlSession) error { return fn(x) })
}

func (s *yamlStore) LoadProject(id string) (*models.Project, error) {
	return within(s, func(x *yamlSession) (*models.Project, error) { return x.LoadProject(id) })
}

func (s *yamlStore) SaveProject(p models.Project) error {
	return s.session(func(x *yamlSession) error { return x.SaveProject(p) })
}

func (s *yamlStore) DeleteProject(id string) error {
	return s.session(func(x *yamlSession) error { return x.DeleteProject(id) })
}

func (s *yamlStore) ListProjects() ([]models.Project, error) {
	return within(s, func(x *yamlSession) ([]models.Project, error) { return x.ListProjects() })
}

func (s *yamlStore) LoadTasks(projectID string) ([]models.Task, error) {
	return within(s, func(x *yamlSession) ([]models.Task, error) { return x.LoadTasks(projectID) })
}

func (s *yamlStore) SaveTasks(projectID string, tasks []models.Task) error {
	return s.session(func(x *yamlSession) error { return x.SaveTasks(projectID, tasks) })
}

func (s *yamlStore) LoadRelationships(projectID string) ([]models.TaskRelationship, error) {
	return within(s, func(x *yamlSession) ([]models.TaskRelationship, error) { return x.LoadRelationships(projectID) })
}

func (s *yamlStore) SaveRelationships(projectID string, rels []models.TaskRelationship) error {
	return s.session(func(x *yamlSession) error { return x.SaveRelationships(projectID, rels) })
}

func (s *yamlStore) LoadCalendar(id string) (*models.Calendar, error) {
	return within(s, func(x *yamlSession) (*models.Calendar, error) { return x.LoadCalendar(id) })
}

func (s *yamlStore) SaveCalendar(cal models.Calendar) error {
	return s.session(func(x *yamlSession) error { return x.SaveCalendar(cal) })
}

func (s *yamlStore) ListCalendars() ([]models.Calendar, error) {
	return within(s, func(x *yamlSession) ([]models.Calendar, error) { return x.ListCalendars() })
}

func (s *yamlStore) SaveBaseline(b models.Baseline) error {
	return s.session(func(x *yamlSession) error { return x.SaveBaseline(b) })
}

func (s *yamlStore) LoadBaselines(projectID string) ([]models.Baseline, error) {
	return within(s, func(x *yamlSession) ([]models.Baseline, error) { return x.LoadBaselines(projectID) })
}

func (s *yamlStore) SaveFloatPaths(projectID string, paths []models.FloatPath) error {
	return s.session(func(x *yamlSession) error { return x.SaveFloatPaths(projectID, paths) })
}

func (s *yamlStore) LoadFloatPaths(projectID string) ([]models.FloatPath, error) {
	return within(s, func(x *yamlSession) ([]models.FloatPath, error) { return x.LoadFloatPaths(projectID) })
}

func (s *yamlStore) SaveScheduleLoop(l models.ScheduleLoop) error {
	return s.session(func(x *yamlSession) error { return x.SaveScheduleLoop(l) })
}

func (s *yamlStore) LoadScheduleLoops(projectID string) ([]models.ScheduleLoop, error) {
	return within(s, func(x *yamlSession) ([]models.ScheduleLoop, error) { return x.LoadScheduleLoops(projectID) })
}

func (s *yamlStore) LoadAssignments(projectID string) ([]models.ResourceAssignment, error) {
	return within(s, func(x *yamlSession) ([]models.ResourceAssignment, error) { return x.LoadAssignments(projectID) })
}

func (s *yamlStore) SaveAssignments(projectID string, as []models.ResourceAssignment) error {
	return s.session(func(x *yamlSession) error { return x.SaveAssignments(projectID, as) })
}

func (s *yamlStore) SaveResource(r models.Resource) error {
	return s.session(func(x *yamlSession) error { return x.SaveResource(r) })
}

func (s *yamlStore) ListResources() ([]models.Resource, error) {
	return within(s, func(x *yamlSession) ([]models.Resource, error) { return x.ListResources() })
}

// yamlSession caches the documents read during one session and tracks
// which of them must be written back.
type yamlSession struct {
	basePath     string
	projects     map[string]*ProjectFile
	dirty        map[string]bool
	deleted      map[string]bool
	catalog      *CatalogFile
	catalogDirty bool
}

func newYAMLSession(basePath string) *yamlSession {
	return &yamlSession{
		basePath: basePath,
		projects: make(map[string]*ProjectFile),
		dirty:    make(map[string]bool),
		deleted:  make(map[string]bool),
	}
}

func validRecordID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid record ID %q", id)
	}
	return nil
}

func (x *yamlSession) projectPath(id string) string {
	return filepath.Join(x.basePath, "projects", id+".yaml")
}

func (x *yamlSession) catalogPath() string {
	return filepath.Join(x.basePath, "catalog.yaml")
}

// project returns the cached document for id, reading it on first use.
func (x *yamlSession) project(id string) (*ProjectFile, error) {
	if err := validRecordID(id); err != nil {
		return nil, err
	}
	if x.deleted[id] {
		return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}
	if doc, ok := x.projects[id]; ok {
		return doc, nil
	}
	data, err := os.ReadFile(x.projectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	var doc ProjectFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("loading project %s: parsing YAML: %w", id, err)
	}
	x.projects[id] = &doc
	return &doc, nil
}

func (x *yamlSession) loadCatalog() (*CatalogFile, error) {
	if x.catalog != nil {
		return x.catalog, nil
	}
	cat := &CatalogFile{Version: yamlFormatVersion}
	data, err := os.ReadFile(x.catalogPath())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("loading catalog: %w", err)
	default:
		if err := yaml.Unmarshal(data, cat); err != nil {
			return nil, fmt.Errorf("loading catalog: parsing YAML: %w", err)
		}
	}
	x.catalog = cat
	return cat, nil
}

// writeFileAtomic replaces path with data through a rename so that readers
// never see a half-written document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (x *yamlSession) flush() error {
	ids := make([]string, 0, len(x.dirty))
	for id := range x.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data, err := yaml.Marshal(x.projects[id])
		if err != nil {
			return fmt.Errorf("saving project %s: marshaling YAML: %w", id, err)
		}
		if err := writeFileAtomic(x.projectPath(id), data); err != nil {
			return fmt.Errorf("saving project %s: writing file: %w", id, err)
		}
	}
	for id := range x.deleted {
		if err := os.Remove(x.projectPath(id)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting project %s: %w", id, err)
		}
	}
	if x.catalogDirty {
		data, err := yaml.Marshal(x.catalog)
		if err != nil {
			return fmt.Errorf("saving catalog: marshaling YAML: %w", err)
		}
		if err := writeFileAtomic(x.catalogPath(), data); err != nil {
			return fmt.Errorf("saving catalog: writing file: %w", err)
		}
	}
	return nil
}

func (x *yamlSession) LoadProject(id string) (*models.Project, error) {
	doc, err := x.project(id)
	if err != nil {
		return nil, err
	}
	p := doc.Project
	return &p, nil
}

func (x *yamlSession) SaveProject(p models.Project) error {
	doc, err := x.project(p.ID)
	if errors.Is(err, core.ErrNotFound) {
		if verr := validRecordID(p.ID); verr != nil {
			return verr
		}
		delete(x.deleted, p.ID)
		doc = &ProjectFile{Version: yamlFormatVersion}
		x.projects[p.ID] = doc
	} else if err != nil {
		return err
	}
	doc.Project = p
	x.dirty[p.ID] = true
	return nil
}

func (x *yamlSession) DeleteProject(id string) error {
	if _, err := x.project(id); err != nil {
		return err
	}
	delete(x.projects, id)
	delete(x.dirty, id)
	x.deleted[id] = true
	return nil
}

func (x *yamlSession) ListProjects() ([]models.Project, error) {
	entries, err := os.ReadDir(filepath.Join(x.basePath, "projects"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	seen := make(map[string]bool)
	var out []models.Project
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		id := strings.TrimSuffix(name, ".yaml")
		doc, err := x.project(id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seen[id] = true
		out = append(out, doc.Project)
	}
	for id, doc := range x.projects {
		if !seen[id] {
			out = append(out, doc.Project)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (x *yamlSession) LoadTasks(projectID string) ([]models.Task, error) {
	doc, err := x.project(projectID)
	if err != nil {
		return nil, err
	}
	tasks := append([]models.Task(nil), doc.Tasks...)
	sortTasksByWBS(tasks)
	return tasks, nil
}

func (x *yamlSession) SaveTasks(projectID string, tasks []models.Task) error {
	doc, err := x.project(projectID)
	if err != nil {
		return err
	}
	doc.Tasks = tasks
	x.dirty[projectID] = true
	return nil
}

func (x *yamlSession) LoadRelationships(projectID string) ([]models.TaskRelationship, error) {
	doc, err := x.project(projectID)
	if err != nil {
		return nil, err
	}
	return doc.Relationships, nil
}

func (x *yamlSession) SaveRelationships(projectID string, rels []models.TaskRelationship) error {
	doc, err := x.project(projectID)
	if err != nil {
		return err
	}
	doc.Relationships = rels
	x.dirty[projectID] = true
	return nil
}

func (x *yamlSession) LoadCalendar(id string) (*models.Calendar, error) {
	cat, err := x.loadCatalog()
	if err != nil {
		return nil, err
	}
	for _, c := range cat.Calendars {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("calendar %s: %w", id, core.ErrNotFound)
}

func (x *yamlSession) SaveCalendar(cal models.Calendar) error {
	cat, err := x.loadCatalog()
	if err != nil {
		return err
	}
	replaced := false
	for i := range cat.Calendars {
		if cat.Calendars[i].ID == cal.ID {
			cat.Calendars[i] = cal
			replaced = true
		}
	}
	if !replaced {
		cat.Calendars = append(cat.Calendars, cal)
		sort.Slice(cat.Calendars, func(i, j int) bool { return cat.Calendars[i].ID < cat.Calendars[j].ID })
	}
	x.catalogDirty = true
	return nil
}

func (x *yamlSession) ListCalendars() ([]models.Calendar, error) {
	cat, err := x.loadCatalog()
	if err != nil {
		return nil, err
	}
	return append([]models.Calendar(nil), cat.Calendars...), nil
}

func (x *yamlSession) SaveBaseline(b models.Baseline) error {
	doc, err := x.project(b.ProjectID)
	if err != nil {
		return err
	}
	for _, existing := range doc.Baselines {
		if existing.ID == b.ID {
			return fmt.Errorf("baseline %s already exists", b.ID)
		}
	}
	doc.Baselines = append(doc.Baselines, b)
	x.dirty[b.ProjectID] = true
	return nil
}

func (x *yamlSession) LoadBaselines(projectID string) ([]models.Baseline, error) {
	doc, err := x.project(projectID)
	if err != nil {
		return nil, err
	}
	return doc.Baselines, nil
}

func (x *yamlSession) SaveFloatPaths(projectID string, paths []models.FloatPath) error {
	doc, err := x.project(projectID)
	if err != nil {
		return err
	}
	doc.FloatPaths = paths
	x.dirty[projectID] = true
	return nil
}

func (x *yamlSession) LoadFloatPaths(projectID string) ([]models.FloatPath, error) {
	doc, err := x.project(projectID)
	if err != nil {
		return nil, err
	}
	return doc.FloatPaths, nil
}

func (x *yamlSession) SaveScheduleLoop(l models.ScheduleLoop) error {
	doc, err := x.project(l.ProjectID)
	if err != nil {
		return err
	}
	doc.ScheduleLoops = append(doc.ScheduleLoops, l)
	x.dirty[l.ProjectID] = true
	return nil
}

func (x *yamlSession) LoadScheduleLoops(projectID string) ([]models.ScheduleLoop, error) {
	doc, err := x.project(projectID)
	if err != nil {
		return nil, err
	}
	return doc.ScheduleLoops, nil
}

func (x *yamlSession) LoadAssignments(projectID string) ([]models.ResourceAssignment, error) {
	doc, err := x.project(projectID)
	if err != nil {
		return nil, err
	}
	return doc.Assignments, nil
}

func (x *yamlSession) SaveAssignments(projectID string, as []models.ResourceAssignment) error {
	doc, err := x.project(projectID)
	if err != nil {
		return err
	}
	doc.Assignments = as
	x.dirty[projectID] = true
	return nil
}

func (x *yamlSession) SaveResource(r models.Resource) error {
	if r.ID == "" {
		return fmt.Errorf("saving resource: ID must not be empty")
	}
	cat, err := x.loadCatalog()
	if err != nil {
		return err
	}
	for i := range cat.Resources {
		if cat.Resources[i].ID == r.ID {
			cat.Resources[i] = r
			x.catalogDirty = true
			return nil
		}
	}
	cat.Resources = append(cat.Resources, r)
	sort.Slice(cat.Resources, func(i, j int) bool { return cat.Resources[i].ID < cat.Resources[j].ID })
	x.catalogDirty = true
	return nil
}

func (x *yamlSession) ListResources() ([]models.Resource, error) {
	cat, err := x.loadCatalog()
	if err != nil {
		return nil, err
	}
	return append([]models.Resource(nil), cat.Resources...), nil
}
