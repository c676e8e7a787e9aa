package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/internal/storage"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	day0       = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	exportTime = time.Date(2024, 2, 10, 17, 45, 0, 0, time.UTC)
)

// seedStore builds two projects through the service so that every entity
// set carries stored CPM output.
func seedStore(t *testing.T) core.ScheduleStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewYAMLStore(t.TempDir())
	clock := day0
	svc := core.NewScheduleService(store, core.ServiceOptions{Now: func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}})

	require.NoError(t, store.SaveResource(models.Resource{ID: "crew-a", Name: "Crew A"}))
	require.NoError(t, svc.SaveCalendar(ctx, models.Calendar{ID: "site", Name: "Site", WorkWeek: models.FullWeek()}))

	house, err := svc.CreateProject(ctx, core.ProjectInput{Name: "House", AnchorDate: day0})
	require.NoError(t, err)
	a, err := svc.CreateTask(ctx, house.ID, models.Task{Name: "Footings", DurationDays: 5})
	require.NoError(t, err)
	b, err := svc.CreateTask(ctx, house.ID, models.Task{Name: "Slab", DurationDays: 2})
	require.NoError(t, err)
	_, err = svc.AddRelationship(ctx, models.TaskRelationship{ProjectID: house.ID, PredecessorID: a.ID, SuccessorID: b.ID})
	require.NoError(t, err)
	_, err = svc.AddRelationship(ctx, models.TaskRelationship{ProjectID: house.ID, PredecessorID: b.ID, SuccessorID: a.ID})
	require.ErrorIs(t, err, core.ErrCycleDetected)
	_, err = svc.AssignResource(ctx, house.ID, models.ResourceAssignment{TaskID: a.ID, ResourceID: "crew-a", Allocation: 1})
	require.NoError(t, err)
	_, err = svc.CaptureBaseline(ctx, house.ID, "Contract")
	require.NoError(t, err)

	shed, err := svc.CreateProject(ctx, core.ProjectInput{Name: "Shed", AnchorDate: day0, CalendarID: "site"})
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, shed.ID, models.Task{Name: "Frame", DurationDays: 3})
	require.NoError(t, err)
	return store
}

func TestExporter_Export(t *testing.T) {
	store := seedStore(t)
	ex := NewExporter(store, Options{ExportedBy: "site-office", Now: func() time.Time { return exportTime }})

	a, err := ex.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, exportTime, a.ExportedAt)
	assert.Equal(t, "site-office", a.ExportedBy)
	assert.Equal(t, "Jizoni Project", a.AppName)
	assert.Equal(t, "1.0", a.AppVersion)

	assert.Equal(t, Summary{
		TotalProjects:         2,
		TotalTasks:            3,
		TotalResources:        1,
		TotalBaselines:        1,
		TotalCalendars:        1,
		TotalRelationships:    1,
		TotalAssignments:      1,
		TotalScheduleSettings: 2,
		TotalFloatPaths:       2,
		TotalScheduleLoops:    1,
	}, a.Summary)

	require.Len(t, a.Entities.Projects, 2)
	assert.Equal(t, "House", a.Entities.Projects[0].Name)
	assert.Equal(t, "site", a.Entities.ScheduleSettings[1].CalendarID)

	// Stored CPM output is carried as is.
	for _, task := range a.Entities.Tasks {
		require.NotNil(t, task.Schedule, task.Name)
		if task.Name == "Slab" {
			assert.True(t, task.Schedule.EarlyStart.Equal(day0.AddDate(0, 0, 7)))
			assert.True(t, task.Schedule.IsCritical)
		}
	}
}

func TestExporter_EmptyStoreEncodesEmptyArrays(t *testing.T) {
	ex := NewExporter(storage.NewYAMLStore(t.TempDir()), Options{Now: func() time.Time { return exportTime }})

	var buf bytes.Buffer
	a, err := ex.WriteJSON(context.Background(), &buf)
	require.NoError(t, err)
	assert.Zero(t, a.Summary)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2024-02-10T17:45:00Z", doc["exported_at"])
	assert.NotContains(t, doc, "exported_by")

	entities, ok := doc["entities"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{
		"projects", "tasks", "resources", "baselines", "calendars", "task_relationships",
		"resource_assignments", "schedule_settings", "float_paths", "schedule_loops",
	} {
		v, ok := entities[key].([]any)
		if assert.True(t, ok, "%s should be an array", key) {
			assert.Empty(t, v, key)
		}
	}
	assert.Contains(t, buf.String(), "\n  \"app_name\": \"Jizoni Project\"")
}

// failingStore fails task loads for one project.
type failingStore struct {
	core.ScheduleStore
	project string
}

var errDisk = errors.New("disk unavailable")

func (f *failingStore) LoadTasks(projectID string) ([]models.Task, error) {
	if projectID == f.project {
		return nil, errDisk
	}
	return f.ScheduleStore.LoadTasks(projectID)
}

func TestExporter_LoadFailure(t *testing.T) {
	store := seedStore(t)
	projects, err := store.ListProjects()
	require.NoError(t, err)

	ex := NewExporter(&failingStore{ScheduleStore: store, project: projects[1].ID}, Options{Parallel: 1})
	_, err = ex.Export(context.Background())
	require.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), projects[1].ID)
}

// countingStore counts store sessions.
type countingStore struct {
	core.TxStore
	sessions atomic.Int32
}

func (c *countingStore) Atomically(fn func(tx core.ScheduleStore) error) error {
	c.sessions.Add(1)
	return c.TxStore.Atomically(fn)
}

func TestExporter_ReadsEachProjectInOneSession(t *testing.T) {
	store := &countingStore{TxStore: seedStore(t).(core.TxStore)}

	a, err := NewExporter(store, Options{}).Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.sessions.Load())
	assert.Equal(t, 3, a.Summary.TotalTasks)
}

func TestExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExporter(seedStore(t), Options{}).Export(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "jizoni-project-data-2024-02-10.json", FileName(exportTime))
}
