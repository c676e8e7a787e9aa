package observability

import (
	"fmt"
	"testing"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

func newTestEngine(log EventLog, th AlertThresholds, now time.Time) AlertEngine {
	e := NewAlertEngine(log, th).(*alertEngine)
	e.now = func() time.Time { return now }
	return e
}

func repeat(n int, typ, project string, at func(i int) time.Time) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = Event{Time: at(i), Level: "WARN", Type: typ, Data: map[string]any{"project_id": project}}
	}
	return out
}

func TestAlertEngine_LoopRejectionBurst(t *testing.T) {
	log := newTestLog(t)
	now := base.Add(48 * time.Hour)
	recent := func(i int) time.Time { return now.Add(-time.Duration(i+1) * time.Minute) }
	old := func(i int) time.Time { return now.Add(-72 * time.Hour) }

	writeAll(t, log, repeat(4, "loop.rejected", "p1", recent)...)
	writeAll(t, log, repeat(3, "loop.rejected", "p2", recent)...)
	writeAll(t, log, repeat(10, "loop.rejected", "p3", old)...)

	alerts, err := newTestEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %+v", alerts)
	}
	a := alerts[0]
	if a.ProjectID != "p1" || a.Condition != "repeated_loop_rejections" || a.Severity != SeverityMedium {
		t.Errorf("alert = %+v", a)
	}
	if a.ID != "repeated_loop_rejections-p1" || !a.TriggeredAt.Equal(now) {
		t.Errorf("alert = %+v", a)
	}
}

func TestAlertEngine_StaleRecomputes(t *testing.T) {
	log := newTestLog(t)
	now := base
	writeAll(t, log, repeat(3, "schedule.stale", "p1", func(i int) time.Time { return now.Add(-time.Hour) })...)

	th := DefaultAlertThresholds()
	th.MaxStaleRecomputes = 2
	alerts, err := newTestEngine(log, th, now).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Condition != "frequent_stale_recomputes" || alerts[0].Severity != SeverityLow {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestAlertEngine_FinishSlip(t *testing.T) {
	event := func(at time.Time, typ, project, finish string) Event {
		return Event{Time: at, Level: "INFO", Type: typ, Data: map[string]any{
			"project_id": project, "finish": finish, "name": "Contract",
		}}
	}

	tests := []struct {
		name   string
		events []Event
		alert  bool
	}{
		{"slipped past threshold", []Event{
			event(base, "baseline.captured", "p1", "2024-01-26"),
			event(base.Add(time.Hour), "schedule.recomputed", "p1", "2024-02-05"),
		}, true},
		{"within threshold", []Event{
			event(base, "baseline.captured", "p1", "2024-01-26"),
			event(base.Add(time.Hour), "schedule.recomputed", "p1", "2024-01-29"),
		}, false},
		{"recovered by later recompute", []Event{
			event(base, "baseline.captured", "p1", "2024-01-26"),
			event(base.Add(time.Hour), "schedule.recomputed", "p1", "2024-02-05"),
			event(base.Add(2*time.Hour), "schedule.recomputed", "p1", "2024-01-26"),
		}, false},
		{"rebaselined", []Event{
			event(base, "baseline.captured", "p1", "2024-01-26"),
			event(base.Add(time.Hour), "schedule.recomputed", "p1", "2024-02-05"),
			event(base.Add(2*time.Hour), "baseline.captured", "p1", "2024-02-05"),
		}, false},
		{"no baseline", []Event{
			event(base, "schedule.recomputed", "p1", "2024-02-05"),
		}, false},
		{"empty project finish", []Event{
			event(base, "baseline.captured", "p1", "2024-01-26"),
			event(base.Add(time.Hour), "schedule.recomputed", "p1", ""),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newTestLog(t)
			writeAll(t, log, tt.events...)
			alerts, err := newTestEngine(log, DefaultAlertThresholds(), base.Add(3*time.Hour)).Evaluate()
			if err != nil {
				t.Fatalf("evaluating alerts: %v", err)
			}
			if got := len(alerts) == 1; got != tt.alert {
				t.Fatalf("alerts = %+v, want alert=%v", alerts, tt.alert)
			}
			if tt.alert && (alerts[0].Condition != "finish_slipped" || alerts[0].Severity != SeverityHigh) {
				t.Errorf("alert = %+v", alerts[0])
			}
		})
	}
}

func TestAlertEngine_OrderedByProject(t *testing.T) {
	log := newTestLog(t)
	now := base
	at := func(i int) time.Time { return now.Add(-time.Minute) }
	for _, p := range []string{"p3", "p1", "p2"} {
		writeAll(t, log, repeat(4, "loop.rejected", p, at)...)
		writeAll(t, log, repeat(6, "schedule.stale", p, at)...)
	}

	alerts, err := newTestEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	var got []string
	for _, a := range alerts {
		got = append(got, a.ProjectID+"/"+a.Condition)
	}
	want := []string{
		"p1/frequent_stale_recomputes", "p1/repeated_loop_rejections",
		"p2/frequent_stale_recomputes", "p2/repeated_loop_rejections",
		"p3/frequent_stale_recomputes", "p3/repeated_loop_rejections",
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestThresholdsFromConfig(t *testing.T) {
	th := ThresholdsFromConfig(models.AlertsConfig{
		MaxLoopRejections: 1, WindowHours: 6, MaxStaleRecomputes: 2, SlipDays: 10,
	})
	if th.Window != 6*time.Hour || th.MaxLoopRejections != 1 || th.MaxStaleRecomputes != 2 || th.SlipDays != 10 {
		t.Errorf("thresholds = %+v", th)
	}
}
