package core

import (
	"math"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// WBSCandidate is one task record proposed by a WBS generator. Nothing in
// it is trusted: candidates go through the same validation as any bulk
// insert.
type WBSCandidate struct {
	Name         string `json:"name"`
	WBSCode      string `json:"wbs_code"`
	Level        int    `json:"level"`
	DurationDays int    `json:"duration_days"`
	Description  string `json:"description"`
}

// ParseWBSCandidates reads a generator payload of the form
// {"tasks":[{"name","wbs_code","level","duration_days","description"}]}.
// Fractional durations are rounded up to whole working days. The result is
// sorted by WBS code so that parents precede their children.
func ParseWBSCandidates(raw []byte) ([]WBSCandidate, error) {
	if !gjson.ValidBytes(raw) {
		return nil, newError(CodeInvalidInput, "WBS payload is not valid JSON")
	}
	tasks := gjson.GetBytes(raw, "tasks")
	if !tasks.IsArray() {
		return nil, newError(CodeInvalidInput, `WBS payload has no "tasks" array`)
	}

	var out []WBSCandidate
	var parseErr error
	tasks.ForEach(func(_, item gjson.Result) bool {
		idx := len(out) + 1
		if !item.IsObject() {
			parseErr = newError(CodeInvalidInput, "WBS item %d is not an object", idx)
			return false
		}
		c := WBSCandidate{
			Name:        strings.TrimSpace(item.Get("name").String()),
			WBSCode:     strings.TrimSpace(item.Get("wbs_code").String()),
			Level:       int(item.Get("level").Int()),
			Description: item.Get("description").String(),
		}
		if c.Name == "" {
			parseErr = newError(CodeInvalidInput, "WBS item %d has no name", idx)
			return false
		}
		if c.WBSCode == "" {
			parseErr = newError(CodeInvalidWBSCode, "WBS item %d (%s) has no wbs_code", idx, c.Name)
			return false
		}
		d := item.Get("duration_days")
		if d.Exists() {
			days := d.Float()
			if days < 0 {
				parseErr = newError(CodeInvalidInput, "WBS item %d (%s) has a negative duration", idx, c.Name)
				return false
			}
			if days > MaxDurationDays {
				parseErr = newError(CodeInvalidInput, "WBS item %d (%s) has a duration over %d working days", idx, c.Name, MaxDurationDays)
				return false
			}
			c.DurationDays = int(math.Ceil(days))
		}
		out = append(out, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sort.SliceStable(out, func(i, j int) bool { return CompareWBSCodes(out[i].WBSCode, out[j].WBSCode) < 0 })
	return out, nil
}

// Task converts a candidate into a new task for the project. The parent is
// left empty so that InsertTask infers it from the WBS code.
func (c WBSCandidate) Task(id, projectID string) models.Task {
	return models.Task{
		ID:           id,
		ProjectID:    projectID,
		Name:         c.Name,
		Description:  c.Description,
		WBSCode:      c.WBSCode,
		Level:        c.Level,
		DurationDays: c.DurationDays,
		Status:       models.StatusNotStarted,
		Priority:     models.PriorityMedium,
	}
}
