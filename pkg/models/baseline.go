package models

import "time"

// BaselineEntry is the captured state of one task.
type BaselineEntry struct {
	TaskID       string     `yaml:"task_id" json:"task_id"`
	WBSCode      string     `yaml:"wbs_code" json:"wbs_code"`
	Name         string     `yaml:"name" json:"name"`
	StartDate    *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate      *time.Time `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	DurationDays int        `yaml:"duration_days" json:"duration_days"`
}

// Baseline is an immutable named snapshot of a schedule.
type Baseline struct {
	ID              string          `yaml:"id" json:"id"`
	ProjectID       string          `yaml:"project_id" json:"project_id"`
	Name            string          `yaml:"name" json:"name"`
	CapturedAt      time.Time       `yaml:"captured_at" json:"captured_at"`
	ScheduleVersion uint64          `yaml:"schedule_version" json:"schedule_version"`
	Entries         []BaselineEntry `yaml:"entries" json:"entries"`
}

// TaskVariance compares one task against its baseline entry.
type TaskVariance struct {
	TaskID               string `json:"task_id"`
	WBSCode              string `json:"wbs_code"`
	Name                 string `json:"name"`
	StartVarianceDays    int    `json:"start_variance_days"`
	ScheduleVarianceDays int    `json:"schedule_variance_days"`
	DurationVarianceDays int    `json:"duration_variance_days"`
	Unscheduled          bool   `json:"unscheduled,omitempty"`
}

// VarianceReport is the result of comparing a live schedule to a baseline.
type VarianceReport struct {
	BaselineID   string          `json:"baseline_id"`
	BaselineName string          `json:"baseline_name"`
	ProjectID    string          `json:"project_id"`
	ComparedAt   time.Time       `json:"compared_at"`
	Tasks        []TaskVariance  `json:"tasks"`
	Added        []string        `json:"added"`
	Removed      []BaselineEntry `json:"removed"`
}
