package models

import "time"

// FloatPath is one minimum-float chain of tasks through the dependency
// graph. It is a cache regenerated on every recompute.
type FloatPath struct {
	ProjectID       string   `yaml:"project_id" json:"project_id"`
	Ordinal         int      `yaml:"ordinal" json:"ordinal"`
	TotalFloat      int      `yaml:"total_float" json:"total_float"`
	TaskIDs         []string `yaml:"task_ids" json:"task_ids"`
	ScheduleVersion uint64   `yaml:"schedule_version" json:"schedule_version"`
}

// ScheduleLoop describes a rejected edge that would have closed a cycle.
// TaskIDs is closed: the first and last element are the same task.
type ScheduleLoop struct {
	ID                    string    `yaml:"id" json:"id"`
	ProjectID             string    `yaml:"project_id" json:"project_id"`
	TaskIDs               []string  `yaml:"task_ids" json:"task_ids"`
	RejectedPredecessorID string    `yaml:"rejected_predecessor_id" json:"rejected_predecessor_id"`
	RejectedSuccessorID   string    `yaml:"rejected_successor_id" json:"rejected_successor_id"`
	DetectedAt            time.Time `yaml:"detected_at" json:"detected_at"`
}

// ScheduleSettings holds the per-project scheduling parameters.
type ScheduleSettings struct {
	ProjectID     string    `yaml:"project_id" json:"project_id"`
	AnchorDate    time.Time `yaml:"anchor_date" json:"anchor_date"`
	CalendarID    string    `yaml:"calendar_id" json:"calendar_id"`
	MaxFloatPaths int       `yaml:"max_float_paths,omitempty" json:"max_float_paths,omitempty"`
}

// Project is the root entity every schedule record belongs to.
type Project struct {
	ID              string           `yaml:"id" json:"id"`
	Name            string           `yaml:"name" json:"name"`
	Description     string           `yaml:"description,omitempty" json:"description,omitempty"`
	ProjectType     string           `yaml:"project_type,omitempty" json:"project_type,omitempty"`
	Settings        ScheduleSettings `yaml:"settings" json:"settings"`
	ScheduleVersion uint64           `yaml:"schedule_version" json:"schedule_version"`
	CreatedAt       time.Time        `yaml:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `yaml:"updated_at" json:"updated_at"`
}
