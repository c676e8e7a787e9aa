package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookNotifier_NoAlerts(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := n.Notify(context.Background(), []Alert{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if called {
		t.Fatal("expected no HTTP request for empty alerts")
	}
}

func TestWebhookNotifier_SendsAlerts(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	at := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	alerts := []Alert{
		{ID: "finish_slipped-p1", ProjectID: "p1", Condition: "finish_slipped", Severity: SeverityHigh,
			Message: "project p1 finishes 2024-02-05, 10 day(s) after baseline", TriggeredAt: at},
		{ID: "repeated_loop_rejections-p2", ProjectID: "p2", Condition: "repeated_loop_rejections", Severity: SeverityMedium,
			Message: "project p2: 4 relationship(s) rejected as loops", TriggeredAt: at},
	}
	if err := NewWebhookNotifier(srv.URL).Notify(context.Background(), alerts); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}
	var got alertPayload
	if err := json.Unmarshal(receivedBody, &got); err != nil {
		t.Fatalf("unmarshalling request body: %v", err)
	}
	if len(got.Projects) != 2 || got.Projects[0].ProjectID != "p1" || got.Projects[1].ProjectID != "p2" {
		t.Fatalf("projects = %+v", got.Projects)
	}
	if !got.Projects[0].Alerts[0].TriggeredAt.Equal(at) {
		t.Errorf("triggered_at = %s", got.Projects[0].Alerts[0].TriggeredAt)
	}
	for _, want := range []string{"2 schedule alert(s) in 2 project(s)", "[HIGH] project p1", "(repeated_loop_rejections)"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("text %q does not contain %q", got.Text, want)
		}
	}
}

func TestBuildPayload_OrdersBySeverity(t *testing.T) {
	p := buildPayload([]Alert{
		{ID: "a", ProjectID: "p1", Severity: SeverityLow, Message: "low"},
		{ID: "b", ProjectID: "p1", Severity: SeverityHigh, Message: "high"},
		{ID: "c", ProjectID: "p1", Severity: SeverityMedium, Message: "medium"},
	})
	if len(p.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(p.Projects))
	}
	var order []string
	for _, a := range p.Projects[0].Alerts {
		order = append(order, a.ID)
	}
	if strings.Join(order, ",") != "b,c,a" {
		t.Errorf("order = %v, want b,c,a", order)
	}
	if !strings.HasSuffix(p.Text, "[LOW] low ()") {
		t.Errorf("text = %q", p.Text)
	}
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), []Alert{
		{ID: "x", Severity: SeverityLow, Message: "m", TriggeredAt: time.Now().UTC()},
	})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status 500 error, got %v", err)
	}
}

func TestWebhookNotifier_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWebhookNotifier(srv.URL).Notify(ctx, []Alert{{ID: "x", Severity: SeverityLow}})
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
