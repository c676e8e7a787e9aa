package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Notifier sends alert notifications to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// webhookNotifier posts one JSON payload per Notify call. The text field
// makes the payload readable by chat webhooks that only look at "text".
type webhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a Notifier that posts to webhookURL.
func NewWebhookNotifier(webhookURL string) Notifier {
	return &webhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type alertPayload struct {
	Text     string          `json:"text"`
	Projects []projectAlerts `json:"projects"`
}

type projectAlerts struct {
	ProjectID string  `json:"project_id"`
	Alerts    []Alert `json:"alerts"`
}

// Notify posts alerts to the webhook. An empty slice sends nothing.
func (n *webhookNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(alerts))
	if err != nil {
		return fmt.Errorf("encoding alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var severityRank = map[AlertSeverity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}

// buildPayload groups alerts by project. Projects are sorted by ID and
// each project's alerts by severity, most urgent first.
func buildPayload(alerts []Alert) alertPayload {
	byProject := make(map[string][]Alert)
	for _, a := range alerts {
		byProject[a.ProjectID] = append(byProject[a.ProjectID], a)
	}
	ids := make([]string, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var text strings.Builder
	fmt.Fprintf(&text, "jzs: %d schedule alert(s) in %d project(s)", len(alerts), len(ids))
	p := alertPayload{Projects: make([]projectAlerts, 0, len(ids))}
	for _, id := range ids {
		group := byProject[id]
		sort.SliceStable(group, func(i, j int) bool {
			return severityRank[group[i].Severity] < severityRank[group[j].Severity]
		})
		for _, a := range group {
			fmt.Fprintf(&text, "\n[%s] %s (%s)", strings.ToUpper(string(a.Severity)), a.Message, a.Condition)
		}
		p.Projects = append(p.Projects, projectAlerts{ProjectID: id, Alerts: group})
	}
	p.Text = text.String()
	return p
}
