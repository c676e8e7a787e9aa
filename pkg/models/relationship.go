package models

import "fmt"

// RelationType is the precedence type of a dependency edge.
type RelationType string

const (
	FinishToStart  RelationType = "finish_to_start"
	StartToStart   RelationType = "start_to_start"
	FinishToFinish RelationType = "finish_to_finish"
	StartToFinish  RelationType = "start_to_finish"
)

// Valid reports whether r is one of the four precedence types.
func (r RelationType) Valid() bool {
	switch r {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	}
	return false
}

// ParseRelationType accepts the long form ("finish_to_start") or the
// two-letter abbreviation ("FS", "ss", ...).
func ParseRelationType(s string) (RelationType, error) {
	switch s {
	case "", "fs", "FS":
		return FinishToStart, nil
	case "ss", "SS":
		return StartToStart, nil
	case "ff", "FF":
		return FinishToFinish, nil
	case "sf", "SF":
		return StartToFinish, nil
	}
	if rt := RelationType(s); rt.Valid() {
		return rt, nil
	}
	return "", fmt.Errorf("unknown relationship type %q (use FS, SS, FF or SF)", s)
}

// TaskRelationship is a directed precedence edge. LagDays is measured in
// working days; a negative lag is a lead.
type TaskRelationship struct {
	ID            string       `yaml:"id" json:"id"`
	ProjectID     string       `yaml:"project_id" json:"project_id"`
	PredecessorID string       `yaml:"predecessor_id" json:"predecessor_id"`
	SuccessorID   string       `yaml:"successor_id" json:"successor_id"`
	Type          RelationType `yaml:"type" json:"type"`
	LagDays       int          `yaml:"lag_days" json:"lag_days"`
}
