package observability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metrics holds activity counts derived from the event log.
type Metrics struct {
	ProjectsCreated     int            `json:"projects_created"`
	TasksCreated        int            `json:"tasks_created"`
	TasksDeleted        int            `json:"tasks_deleted"`
	RelationshipsAdded  int            `json:"relationships_added"`
	LoopsRejected       int            `json:"loops_rejected"`
	Recomputes          int            `json:"recomputes"`
	StaleRecomputes     int            `json:"stale_recomputes"`
	BaselinesCaptured   int            `json:"baselines_captured"`
	RecomputesByTrigger map[string]int `json:"recomputes_by_trigger"`
	EventsByProject     map[string]int `json:"events_by_project"`
	EventCount          int            `json:"event_count"`
	OldestEvent         *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent         *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event since the given time.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		RecomputesByTrigger: make(map[string]int),
		EventsByProject:     make(map[string]int),
		EventCount:          len(events),
	}

	for _, event := range events {
		t := event.Time
		if m.OldestEvent == nil || t.Before(*m.OldestEvent) {
			m.OldestEvent = &t
		}
		if m.NewestEvent == nil || t.After(*m.NewestEvent) {
			m.NewestEvent = &t
		}
		if pid := event.ProjectID(); pid != "" {
			m.EventsByProject[pid]++
		}

		switch event.Type {
		case "project.created":
			m.ProjectsCreated++
		case "task.created":
			m.TasksCreated++
		case "task.bulk_created":
			m.TasksCreated += intField(event.Data, "count")
		case "task.deleted":
			m.TasksDeleted += max(intField(event.Data, "tasks_removed"), 1)
		case "relationship.added":
			m.RelationshipsAdded++
		case "loop.rejected":
			m.LoopsRejected++
		case "schedule.recomputed":
			m.Recomputes++
			if trigger, ok := event.Data["trigger"].(string); ok {
				m.RecomputesByTrigger[trigger]++
			}
		case "schedule.stale":
			m.StaleRecomputes++
		case "baseline.captured":
			m.BaselinesCaptured++
		}
	}

	return m, nil
}

// intField reads a numeric field that went through JSON (float64) or was
// set in memory (int).
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case uint64:
		return int(v)
	}
	return 0
}

// SinceCutoff turns a look-back window such as "24h", "10d" or "6w" into
// the cutoff before now. Days and weeks are calendar days, not working
// days. An empty window means one week.
func SinceCutoff(window string, now time.Time) (time.Time, error) {
	window = strings.TrimSpace(window)
	if window == "" {
		return now.AddDate(0, 0, -7), nil
	}
	unit := window[len(window)-1]
	n, err := strconv.Atoi(window[:len(window)-1])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid window %q (use e.g. 24h, 10d, 6w)", window)
	}
	switch unit {
	case 'h':
		return now.Add(-time.Duration(n) * time.Hour), nil
	case 'd':
		return now.AddDate(0, 0, -n), nil
	case 'w':
		return now.AddDate(0, 0, -7*n), nil
	}
	return time.Time{}, fmt.Errorf("invalid window %q (use e.g. 24h, 10d, 6w)", window)
}
