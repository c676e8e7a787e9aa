package core

import (
	"errors"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// ErrNotFound is wrapped by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ScheduleStore is the persistence collaborator of the schedule service.
// This interface is defined locally in core to avoid importing storage.
//
// The Save* methods taking a project ID replace the project's whole set of
// records of that kind.
type ScheduleStore interface {
	LoadProject(projectID string) (*models.Project, error)
	SaveProject(project models.Project) error
	DeleteProject(projectID string) error
	ListProjects() ([]models.Project, error)

	LoadTasks(projectID string) ([]models.Task, error)
	SaveTasks(projectID string, tasks []models.Task) error
	LoadRelationships(projectID string) ([]models.TaskRelationship, error)
	SaveRelationships(projectID string, rels []models.TaskRelationship) error

	LoadCalendar(calendarID string) (*models.Calendar, error)
	SaveCalendar(cal models.Calendar) error
	ListCalendars() ([]models.Calendar, error)

	SaveBaseline(baseline models.Baseline) error
	LoadBaselines(projectID string) ([]models.Baseline, error)

	SaveFloatPaths(projectID string, paths []models.FloatPath) error
	LoadFloatPaths(projectID string) ([]models.FloatPath, error)
	SaveScheduleLoop(loop models.ScheduleLoop) error
	LoadScheduleLoops(projectID string) ([]models.ScheduleLoop, error)

	LoadAssignments(projectID string) ([]models.ResourceAssignment, error)
	SaveAssignments(projectID string, assignments []models.ResourceAssignment) error
	SaveResource(resource models.Resource) error
	ListResources() ([]models.Resource, error)
}

// TxStore is a ScheduleStore that can run a group of writes as one
// transaction. If fn returns an error nothing it wrote is kept.
type TxStore interface {
	ScheduleStore
	Atomically(fn func(tx ScheduleStore) error) error
}
