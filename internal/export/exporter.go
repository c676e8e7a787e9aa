// Package export writes the complete entity set of a Jizoni store as one
// flat JSON archive.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

const (
	AppName    = "Jizoni Project"
	AppVersion = "1.0"
)

// Entities holds every entity set of the archive. Slices are never nil so
// that empty sets encode as [].
type Entities struct {
	Projects            []models.Project            `json:"projects"`
	Tasks               []models.Task               `json:"tasks"`
	Resources           []models.Resource           `json:"resources"`
	Baselines           []models.Baseline           `json:"baselines"`
	Calendars           []models.Calendar           `json:"calendars"`
	TaskRelationships   []models.TaskRelationship   `json:"task_relationships"`
	ResourceAssignments []models.ResourceAssignment `json:"resource_assignments"`
	ScheduleSettings    []models.ScheduleSettings   `json:"schedule_settings"`
	FloatPaths          []models.FloatPath          `json:"float_paths"`
	ScheduleLoops       []models.ScheduleLoop       `json:"schedule_loops"`
}

// Summary counts each entity set.
type Summary struct {
	TotalProjects         int `json:"total_projects"`
	TotalTasks            int `json:"total_tasks"`
	TotalResources        int `json:"total_resources"`
	TotalBaselines        int `json:"total_baselines"`
	TotalCalendars        int `json:"total_calendars"`
	TotalRelationships    int `json:"total_relationships"`
	TotalAssignments      int `json:"total_assignments"`
	TotalScheduleSettings int `json:"total_schedule_settings"`
	TotalFloatPaths       int `json:"total_float_paths"`
	TotalScheduleLoops    int `json:"total_schedule_loops"`
}

// Archive is the exported document.
type Archive struct {
	ExportedAt time.Time `json:"exported_at"`
	ExportedBy string    `json:"exported_by,omitempty"`
	AppName    string    `json:"app_name"`
	AppVersion string    `json:"app_version"`
	Entities   Entities  `json:"entities"`
	Summary    Summary   `json:"summary"`
}

// Options tunes an Exporter.
type Options struct {
	ExportedBy string
	// Parallel bounds concurrent per-project loads. Zero means 4.
	Parallel int
	Now      func() time.Time
}

// Exporter reads a store and assembles an Archive. CPM fields are copied
// from the stored snapshot as they are.
type Exporter struct {
	store core.ScheduleStore
	opts  Options
}

// NewExporter creates an Exporter over store.
func NewExporter(store core.ScheduleStore, opts Options) *Exporter {
	if opts.Parallel <= 0 {
		opts.Parallel = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{store: store, opts: opts}
}

// projectSet is everything stored under one project.
type projectSet struct {
	tasks       []models.Task
	rels        []models.TaskRelationship
	assignments []models.ResourceAssignment
	baselines   []models.Baseline
	paths       []models.FloatPath
	loops       []models.ScheduleLoop
}

// Export loads every entity set and returns the archive. Entity order
// follows the store: projects by creation, then each project's records.
func (e *Exporter) Export(ctx context.Context) (*Archive, error) {
	var (
		projects  []models.Project
		calendars []models.Calendar
		resources []models.Resource
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = e.store.ListProjects()
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		return gCtx.Err()
	})
	g.Go(func() error {
		var err error
		calendars, err = e.store.ListCalendars()
		if err != nil {
			return fmt.Errorf("listing calendars: %w", err)
		}
		return gCtx.Err()
	})
	g.Go(func() error {
		var err error
		resources, err = e.store.ListResources()
		if err != nil {
			return fmt.Errorf("listing resources: %w", err)
		}
		return gCtx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("exporting: %w", err)
	}

	sets := make([]projectSet, len(projects))
	g, gCtx = errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallel)
	for i := range projects {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			set, err := e.loadProject(projects[i].ID)
			if err != nil {
				return fmt.Errorf("project %s: %w", projects[i].ID, err)
			}
			sets[i] = *set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("exporting: %w", err)
	}

	a := &Archive{
		ExportedAt: e.opts.Now().UTC(),
		ExportedBy: e.opts.ExportedBy,
		AppName:    AppName,
		AppVersion: AppVersion,
		Entities: Entities{
			Projects:            nonNil(projects),
			Tasks:               []models.Task{},
			Resources:           nonNil(resources),
			Baselines:           []models.Baseline{},
			Calendars:           nonNil(calendars),
			TaskRelationships:   []models.TaskRelationship{},
			ResourceAssignments: []models.ResourceAssignment{},
			ScheduleSettings:    []models.ScheduleSettings{},
			FloatPaths:          []models.FloatPath{},
			ScheduleLoops:       []models.ScheduleLoop{},
		},
	}
	en := &a.Entities
	for i, p := range projects {
		set := sets[i]
		en.ScheduleSettings = append(en.ScheduleSettings, p.Settings)
		en.Tasks = append(en.Tasks, set.tasks...)
		en.TaskRelationships = append(en.TaskRelationships, set.rels...)
		en.ResourceAssignments = append(en.ResourceAssignments, set.assignments...)
		en.Baselines = append(en.Baselines, set.baselines...)
		en.FloatPaths = append(en.FloatPaths, set.paths...)
		en.ScheduleLoops = append(en.ScheduleLoops, set.loops...)
	}
	a.Summary = summarize(en)
	return a, nil
}

// loadProject reads one project's records in a single store session when
// the store has one.
func (e *Exporter) loadProject(id string) (*projectSet, error) {
	var set *projectSet
	read := func(st core.ScheduleStore) error {
		var err error
		set, err = readProjectSet(st, id)
		return err
	}
	var err error
	if tx, ok := e.store.(core.TxStore); ok {
		err = tx.Atomically(read)
	} else {
		err = read(e.store)
	}
	if err != nil {
		return nil, err
	}
	return set, nil
}

func readProjectSet(st core.ScheduleStore, id string) (*projectSet, error) {
	var (
		set projectSet
		err error
	)
	if set.tasks, err = st.LoadTasks(id); err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	if set.rels, err = st.LoadRelationships(id); err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	if set.assignments, err = st.LoadAssignments(id); err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}
	if set.baselines, err = st.LoadBaselines(id); err != nil {
		return nil, fmt.Errorf("loading baselines: %w", err)
	}
	if set.paths, err = st.LoadFloatPaths(id); err != nil {
		return nil, fmt.Errorf("loading float paths: %w", err)
	}
	if set.loops, err = st.LoadScheduleLoops(id); err != nil {
		return nil, fmt.Errorf("loading schedule loops: %w", err)
	}
	return &set, nil
}

func summarize(en *Entities) Summary {
	return Summary{
		TotalProjects:         len(en.Projects),
		TotalTasks:            len(en.Tasks),
		TotalResources:        len(en.Resources),
		TotalBaselines:        len(en.Baselines),
		TotalCalendars:        len(en.Calendars),
		TotalRelationships:    len(en.TaskRelationships),
		TotalAssignments:      len(en.ResourceAssignments),
		TotalScheduleSettings: len(en.ScheduleSettings),
		TotalFloatPaths:       len(en.FloatPaths),
		TotalScheduleLoops:    len(en.ScheduleLoops),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// WriteJSON exports and writes the archive as indented JSON.
func (e *Exporter) WriteJSON(ctx context.Context, w io.Writer) (*Archive, error) {
	a, err := e.Export(ctx)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("encoding archive: %w", err)
	}
	return a, nil
}

// FileName is the conventional archive name for the given export time.
func FileName(at time.Time) string {
	return fmt.Sprintf("jizoni-project-data-%s.json", at.UTC().Format("2006-01-02"))
}
