package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered schedule health condition.
type Alert struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	MaxLoopRejections  int
	Window             time.Duration
	MaxStaleRecomputes int
	SlipDays           int
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxLoopRejections:  3,
		Window:             24 * time.Hour,
		MaxStaleRecomputes: 5,
		SlipDays:           5,
	}
}

// ThresholdsFromConfig converts the alerts section of the global config.
func ThresholdsFromConfig(cfg models.AlertsConfig) AlertThresholds {
	return AlertThresholds{
		MaxLoopRejections:  cfg.MaxLoopRejections,
		Window:             time.Duration(cfg.WindowHours) * time.Hour,
		MaxStaleRecomputes: cfg.MaxStaleRecomputes,
		SlipDays:           cfg.SlipDays,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine over eventLog.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Evaluate checks every condition and returns the triggered alerts ordered
// by project then condition.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	var alerts []Alert

	loops, err := ae.checkBurst(now, "loop.rejected", ae.thresholds.MaxLoopRejections,
		"repeated_loop_rejections", SeverityMedium, "%d relationship(s) rejected as loops in the last %s")
	if err != nil {
		return nil, fmt.Errorf("checking loop rejections: %w", err)
	}
	alerts = append(alerts, loops...)

	stale, err := ae.checkBurst(now, "schedule.stale", ae.thresholds.MaxStaleRecomputes,
		"frequent_stale_recomputes", SeverityLow, "%d recompute(s) discarded as stale in the last %s")
	if err != nil {
		return nil, fmt.Errorf("checking stale recomputes: %w", err)
	}
	alerts = append(alerts, stale...)

	slips, err := ae.checkFinishSlip(now)
	if err != nil {
		return nil, fmt.Errorf("checking finish slip: %w", err)
	}
	alerts = append(alerts, slips...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].ProjectID != alerts[j].ProjectID {
			return alerts[i].ProjectID < alerts[j].ProjectID
		}
		return alerts[i].Condition < alerts[j].Condition
	})
	return alerts, nil
}

// checkBurst alerts for each project with more than limit events of the
// given type inside the window.
func (ae *alertEngine) checkBurst(now time.Time, eventType string, limit int,
	condition string, severity AlertSeverity, format string) ([]Alert, error) {
	since := now.Add(-ae.thresholds.Window)
	events, err := ae.eventLog.Read(EventFilter{Type: eventType, Since: &since})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, event := range events {
		if pid := event.ProjectID(); pid != "" {
			counts[pid]++
		}
	}

	var alerts []Alert
	for pid, n := range counts {
		if n <= limit {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("%s-%s", condition, pid),
			ProjectID:   pid,
			Condition:   condition,
			Severity:    severity,
			Message:     fmt.Sprintf("project %s: "+format, pid, n, ae.thresholds.Window),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

// checkFinishSlip compares the latest recomputed finish of each project
// with the finish recorded by its latest baseline.
func (ae *alertEngine) checkFinishSlip(now time.Time) ([]Alert, error) {
	baselines, err := ae.eventLog.Read(EventFilter{Type: "baseline.captured"})
	if err != nil {
		return nil, err
	}
	recomputes, err := ae.eventLog.Read(EventFilter{Type: "schedule.recomputed"})
	if err != nil {
		return nil, err
	}

	planned := latestFinish(baselines)
	current := latestFinish(recomputes)

	var alerts []Alert
	for pid, base := range planned {
		cur, ok := current[pid]
		if !ok {
			continue
		}
		slip := int(cur.finish.Sub(base.finish).Hours() / 24)
		if slip <= ae.thresholds.SlipDays {
			continue
		}
		name, _ := base.event.Data["name"].(string)
		alerts = append(alerts, Alert{
			ID:        fmt.Sprintf("finish_slipped-%s", pid),
			ProjectID: pid,
			Condition: "finish_slipped",
			Severity:  SeverityHigh,
			Message: fmt.Sprintf("project %s finishes %s, %d day(s) after baseline %q (%s)",
				pid, cur.finish.Format("2006-01-02"), slip, name, base.finish.Format("2006-01-02")),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

type finishMark struct {
	finish time.Time
	event  Event
}

// latestFinish keeps, per project, the finish date carried by the most
// recent event that has one.
func latestFinish(events []Event) map[string]finishMark {
	out := make(map[string]finishMark)
	for _, event := range events {
		raw, _ := event.Data["finish"].(string)
		if raw == "" {
			continue
		}
		finish, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		pid := event.ProjectID()
		if prev, ok := out[pid]; ok && prev.event.Time.After(event.Time) {
			continue
		}
		out[pid] = finishMark{finish: finish, event: event}
	}
	return out
}
