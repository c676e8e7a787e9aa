package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
)

type alertEngineMock struct {
	alerts []observability.Alert
	err    error
}

func (m *alertEngineMock) Evaluate() ([]observability.Alert, error) {
	return m.alerts, m.err
}

type notifierMock struct {
	sent []observability.Alert
	err  error
}

func (m *notifierMock) Notify(_ context.Context, alerts []observability.Alert) error {
	m.sent = append(m.sent, alerts...)
	return m.err
}

func withAlerts(t *testing.T, engine observability.AlertEngine, notifier observability.Notifier, notify bool) *bytes.Buffer {
	t.Helper()
	origEngine, origNotifier, origNotify := AlertEngine, Notifier, alertsNotify
	t.Cleanup(func() {
		AlertEngine, Notifier, alertsNotify = origEngine, origNotifier, origNotify
		alertsCmd.SetOut(nil)
	})
	AlertEngine = engine
	Notifier = notifier
	alertsNotify = notify
	var out bytes.Buffer
	alertsCmd.SetOut(&out)
	return &out
}

var slipAlert = observability.Alert{
	ID:          "finish_slipped-p1",
	ProjectID:   "p1",
	Condition:   "finish_slipped",
	Severity:    observability.SeverityHigh,
	Message:     "Project p1 finish slipped 6 day(s) past baseline Contract",
	TriggeredAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
}

func TestAlertsCmd_NilEngine(t *testing.T) {
	withAlerts(t, nil, nil, false)
	err := alertsCmd.RunE(alertsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got %v", err)
	}
}

func TestAlertsCmd_NoAlerts(t *testing.T) {
	out := withAlerts(t, &alertEngineMock{}, nil, false)
	if err := alertsCmd.RunE(alertsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No active alerts.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestAlertsCmd_ListsAlerts(t *testing.T) {
	out := withAlerts(t, &alertEngineMock{alerts: []observability.Alert{slipAlert}}, nil, false)
	if err := alertsCmd.RunE(alertsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"1 active alert(s)", "HIGH", "slipped 6 day(s)", "2024-03-04 09:00 UTC"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestAlertsCmd_EvaluateError(t *testing.T) {
	withAlerts(t, &alertEngineMock{err: fmt.Errorf("event log unreadable")}, nil, false)
	err := alertsCmd.RunE(alertsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "evaluating alerts") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAlertsCmd_Notify(t *testing.T) {
	notifier := &notifierMock{}
	out := withAlerts(t, &alertEngineMock{alerts: []observability.Alert{slipAlert}}, notifier, true)
	if err := alertsCmd.RunE(alertsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].ID != slipAlert.ID {
		t.Errorf("notifier received %+v", notifier.sent)
	}
	if !strings.Contains(out.String(), "Alerts sent.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestAlertsCmd_NotifyWithoutWebhook(t *testing.T) {
	withAlerts(t, &alertEngineMock{alerts: []observability.Alert{slipAlert}}, nil, true)
	err := alertsCmd.RunE(alertsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "no webhook configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAlertsCmd_NotifyFailure(t *testing.T) {
	withAlerts(t, &alertEngineMock{alerts: []observability.Alert{slipAlert}}, &notifierMock{err: fmt.Errorf("502")}, true)
	err := alertsCmd.RunE(alertsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "sending alerts") {
		t.Errorf("unexpected error: %v", err)
	}
}
