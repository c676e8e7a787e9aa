package models

import "time"

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusOnHold     TaskStatus = "on_hold"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusOnHold:
		return true
	}
	return false
}

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Task is a single WBS element of a project. Dates are calendar days
// normalised to midnight UTC; StartDate and EndDate stay nil until the
// task has been scheduled.
type Task struct {
	ID           string        `yaml:"id" json:"id"`
	ProjectID    string        `yaml:"project_id" json:"project_id"`
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	WBSCode      string        `yaml:"wbs_code" json:"wbs_code"`
	ParentTaskID string        `yaml:"parent_task_id,omitempty" json:"parent_task_id,omitempty"`
	Level        int           `yaml:"level" json:"level"`
	DurationDays int           `yaml:"duration_days" json:"duration_days"`
	StartDate    *time.Time    `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate      *time.Time    `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Status       TaskStatus    `yaml:"status" json:"status"`
	Priority     Priority      `yaml:"priority" json:"priority"`
	CalendarID   string        `yaml:"calendar_id,omitempty" json:"calendar_id,omitempty"`
	AssignedTo   string        `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	Schedule     *TaskSchedule `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// TaskSchedule holds the CPM-derived fields of a task. It is written only
// by the scheduler and never edited by hand.
type TaskSchedule struct {
	EarlyStart  time.Time `yaml:"early_start" json:"early_start"`
	EarlyFinish time.Time `yaml:"early_finish" json:"early_finish"`
	LateStart   time.Time `yaml:"late_start" json:"late_start"`
	LateFinish  time.Time `yaml:"late_finish" json:"late_finish"`
	TotalFloat  int       `yaml:"total_float" json:"total_float"`
	FreeFloat   int       `yaml:"free_float" json:"free_float"`
	IsCritical  bool      `yaml:"is_critical" json:"is_critical"`
	Version     uint64    `yaml:"version" json:"version"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.StartDate != nil {
		d := *t.StartDate
		out.StartDate = &d
	}
	if t.EndDate != nil {
		d := *t.EndDate
		out.EndDate = &d
	}
	if t.Schedule != nil {
		s := *t.Schedule
		out.Schedule = &s
	}
	return out
}
