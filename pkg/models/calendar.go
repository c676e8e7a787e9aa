package models

import "time"

// CalendarException overrides the weekly pattern for a single date.
type CalendarException struct {
	Date    time.Time `yaml:"date" json:"date"`
	Working bool      `yaml:"working" json:"working"`
	Name    string    `yaml:"name,omitempty" json:"name,omitempty"`
}

// Calendar is a named set of working-day rules. WorkWeek is indexed by
// time.Weekday, Sunday first.
type Calendar struct {
	ID         string              `yaml:"id" json:"id"`
	Name       string              `yaml:"name" json:"name"`
	WorkWeek   [7]bool             `yaml:"work_week" json:"work_week"`
	Exceptions []CalendarException `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
}

// StandardWorkWeek is Monday to Friday.
func StandardWorkWeek() [7]bool {
	return [7]bool{false, true, true, true, true, true, false}
}

// FullWeek treats every day as a working day.
func FullWeek() [7]bool {
	return [7]bool{true, true, true, true, true, true, true}
}
