package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
	"github.com/valter-silva-au/jizoni-schedule/internal/storage"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// --- Fake implementations ---

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc     core.ScheduleService
	project string
	a, b    string
}

// newFixture creates project "House" with Footings (5d) and Slab (2d), not
// yet linked.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	svc := core.NewScheduleService(storage.NewYAMLStore(t.TempDir()), core.ServiceOptions{})
	p, err := svc.CreateProject(ctx, core.ProjectInput{Name: "House", AnchorDate: day0})
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}
	a, err := svc.CreateTask(ctx, p.ID, models.Task{Name: "Footings", DurationDays: 5})
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	b, err := svc.CreateTask(ctx, p.ID, models.Task{Name: "Slab", DurationDays: 2})
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return &fixture{svc: svc, project: p.ID, a: a.ID, b: b.ID}
}

func (f *fixture) link(t *testing.T) {
	t.Helper()
	_, err := f.svc.AddRelationship(context.Background(), models.TaskRelationship{
		ProjectID: f.project, PredecessorID: f.a, SuccessorID: f.b, Type: models.FinishToStart,
	})
	if err != nil {
		t.Fatalf("linking: %v", err)
	}
}

// callTool connects a client to the server over in-memory transports and
// calls a tool. Protocol errors (e.g. schema validation) return nil.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil
	}
	return result
}

func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result == nil {
		t.Fatal("tool call failed at the protocol level")
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if err := json.Unmarshal([]byte(extractText(result)), out); err == nil {
		return
	}
	if result.StructuredContent == nil {
		t.Fatalf("no structured content (text was: %s)", extractText(result))
	}
	data, _ := json.Marshal(result.StructuredContent)
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshalling output: %v", err)
	}
}

func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func expectToolError(t *testing.T, result *gomcp.CallToolResult, contains string) {
	t.Helper()
	if result == nil {
		return
	}
	if !result.IsError {
		t.Fatalf("expected error result, got %s", extractText(result))
	}
	if contains != "" && !strings.Contains(extractText(result), contains) {
		t.Errorf("error %q does not contain %q", extractText(result), contains)
	}
}

// --- Tests ---

func TestGetSchedule(t *testing.T) {
	f := newFixture(t)
	f.link(t)
	srv := NewServer(f.svc, nil, nil, "test")

	var out scheduleOutput
	decode(t, callTool(t, srv, "get_schedule", map[string]any{"project_id": f.project}), &out)

	if out.ProjectName != "House" || out.Version != 3 {
		t.Errorf("project = %s v%d", out.ProjectName, out.Version)
	}
	if out.AnchorDate != "2024-01-01" || out.Finish != "2024-01-10" {
		t.Errorf("anchor %s finish %s", out.AnchorDate, out.Finish)
	}
	if len(out.Tasks) != 2 || len(out.Relationships) != 1 {
		t.Fatalf("got %d tasks and %d relationships", len(out.Tasks), len(out.Relationships))
	}
	slab := out.Tasks[1]
	if slab.WBSCode != "2" || slab.EarlyStart != "2024-01-08" || !slab.Critical {
		t.Errorf("slab = %+v", slab)
	}
	if out.Relationships[0].Type != "FS" {
		t.Errorf("relationship type = %s", out.Relationships[0].Type)
	}
}

func TestGetSchedule_UnknownProject(t *testing.T) {
	srv := NewServer(newFixture(t).svc, nil, nil, "test")
	expectToolError(t, callTool(t, srv, "get_schedule", map[string]any{"project_id": "nope"}), "getting schedule")
}

func TestGetCriticalPath(t *testing.T) {
	f := newFixture(t)
	f.link(t)
	srv := NewServer(f.svc, nil, nil, "test")

	var out criticalPathOutput
	decode(t, callTool(t, srv, "get_critical_path", map[string]any{"project_id": f.project}), &out)

	if len(out.Tasks) != 2 || out.Tasks[0].ID != f.a || out.Tasks[1].ID != f.b {
		t.Fatalf("critical path = %+v", out.Tasks)
	}
	if len(out.FloatPaths) == 0 || out.FloatPaths[0].TotalFloat != 0 {
		t.Errorf("float paths = %+v", out.FloatPaths)
	}
}

func TestAddRelationship(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.svc, nil, nil, "test")

	var out addRelationshipOutput
	decode(t, callTool(t, srv, "add_relationship", map[string]any{
		"project_id": f.project, "predecessor_id": f.a, "successor_id": f.b, "type": "SS", "lag_days": 2,
	}), &out)
	if out.Relationship.Type != "SS" || out.Relationship.LagDays != 2 || out.Relationship.ID == "" {
		t.Errorf("relationship = %+v", out.Relationship)
	}

	sched, err := f.svc.GetSchedule(context.Background(), f.project)
	if err != nil {
		t.Fatal(err)
	}
	if es := sched.Tasks[f.b].Schedule.EarlyStart; !es.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("slab early start = %s", es)
	}
}

func TestAddRelationship_LoopRejected(t *testing.T) {
	f := newFixture(t)
	f.link(t)
	srv := NewServer(f.svc, nil, nil, "test")

	result := callTool(t, srv, "add_relationship", map[string]any{
		"project_id": f.project, "predecessor_id": f.b, "successor_id": f.a,
	})
	expectToolError(t, result, "loop")
	if result != nil && !strings.Contains(extractText(result), f.a+" -> "+f.b) {
		t.Errorf("loop path missing from %q", extractText(result))
	}

	loops, err := f.svc.ScheduleLoops(f.project)
	if err != nil {
		t.Fatal(err)
	}
	if len(loops) != 1 {
		t.Errorf("expected 1 recorded loop, got %d", len(loops))
	}
}

func TestAddRelationship_BadType(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.svc, nil, nil, "test")
	expectToolError(t, callTool(t, srv, "add_relationship", map[string]any{
		"project_id": f.project, "predecessor_id": f.a, "successor_id": f.b, "type": "XX",
	}), "XX")
}

func TestImportWBS(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.svc, nil, nil, "test")

	payload := `{"tasks":[
		{"name":"Survey","wbs_code":"3.1","level":2,"duration_days":1.5},
		{"name":"Site works","wbs_code":"3","level":1,"duration_days":4,"description":"generated"}
	]}`
	var out importWBSOutput
	decode(t, callTool(t, srv, "import_wbs", map[string]any{"project_id": f.project, "payload": payload}), &out)

	if out.Count != 2 || len(out.Created) != 2 {
		t.Fatalf("created = %+v", out.Created)
	}
	survey := out.Created[1]
	if survey.Name != "Survey" || survey.DurationDays != 2 || survey.ParentTaskID != out.Created[0].ID {
		t.Errorf("survey = %+v", survey)
	}
	if survey.EarlyStart == "" {
		t.Error("imported tasks should carry computed dates")
	}
}

func TestImportWBS_InvalidPayloadRejectsBatch(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.svc, nil, nil, "test")

	expectToolError(t, callTool(t, srv, "import_wbs", map[string]any{
		"project_id": f.project,
		"payload":    `{"tasks":[{"name":"Ok","wbs_code":"3"},{"name":"Bad","wbs_code":"3..1"}]}`,
	}), "importing WBS")
	expectToolError(t, callTool(t, srv, "import_wbs", map[string]any{
		"project_id": f.project, "payload": "not json",
	}), "")

	sched, err := f.svc.GetSchedule(context.Background(), f.project)
	if err != nil {
		t.Fatal(err)
	}
	if len(sched.Tasks) != 2 {
		t.Errorf("expected the batch to be rejected whole, have %d tasks", len(sched.Tasks))
	}
}

func TestCompareBaseline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.link(t)
	if _, err := f.svc.CaptureBaseline(ctx, f.project, "Contract"); err != nil {
		t.Fatal(err)
	}
	seven := 7
	if _, err := f.svc.UpdateTask(ctx, f.project, f.a, core.TaskUpdate{DurationDays: &seven}); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(f.svc, nil, nil, "test")

	var out varianceOutput
	decode(t, callTool(t, srv, "compare_baseline", map[string]any{"project_id": f.project, "baseline": "contract"}), &out)

	if out.BaselineName != "Contract" || len(out.Tasks) != 2 {
		t.Fatalf("report = %+v", out)
	}
	if out.MaxSlipDays != 2 || out.Tasks[0].DurationVarianceDays != 2 {
		t.Errorf("variance = %+v", out)
	}
	if len(out.Added) != 0 || len(out.Removed) != 0 {
		t.Errorf("added %v removed %v", out.Added, out.Removed)
	}

	expectToolError(t, callTool(t, srv, "compare_baseline", map[string]any{"project_id": f.project, "baseline": "Tender"}), "not found")
}

func TestGetMetrics(t *testing.T) {
	f := newFixture(t)
	oldest := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	calc := &fakeMetricsCalculator{metrics: &observability.Metrics{
		TasksCreated:    2,
		LoopsRejected:   1,
		Recomputes:      3,
		EventsByProject: map[string]int{f.project: 6},
		EventCount:      6,
		OldestEvent:     &oldest,
	}}
	srv := NewServer(f.svc, calc, nil, "test")

	var out metricsOutput
	decode(t, callTool(t, srv, "get_metrics", map[string]any{"since": "30d"}), &out)
	if out.TasksCreated != 2 || out.LoopsRejected != 1 || out.Recomputes != 3 || out.EventsByProject[f.project] != 6 {
		t.Errorf("metrics = %+v", out)
	}
	if out.OldestEvent != "2024-03-01T09:00:00Z" {
		t.Errorf("oldest = %s", out.OldestEvent)
	}

	expectToolError(t, callTool(t, srv, "get_metrics", map[string]any{"since": "7y"}), "since")
	expectToolError(t, callTool(t, NewServer(f.svc, nil, nil, ""), "get_metrics", map[string]any{}), "not available")
}

func TestGetAlerts(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	engine := &fakeAlertEngine{alerts: []observability.Alert{
		{ID: "finish_slipped-p1", ProjectID: "p1", Condition: "finish_slipped", Severity: observability.SeverityHigh, Message: "late", TriggeredAt: at},
	}}
	srv := NewServer(f.svc, nil, engine, "test")

	var out getAlertsOutput
	decode(t, callTool(t, srv, "get_alerts", map[string]any{}), &out)
	if out.Count != 1 || out.Alerts[0].Severity != "high" || out.Alerts[0].TriggeredAt != "2024-03-04T10:00:00Z" {
		t.Errorf("alerts = %+v", out)
	}

	expectToolError(t, callTool(t, NewServer(f.svc, nil, nil, ""), "get_alerts", map[string]any{}), "not available")
}

func TestMissingProjectID(t *testing.T) {
	srv := NewServer(newFixture(t).svc, nil, nil, "test")
	for _, tool := range []string{"get_schedule", "get_critical_path", "import_wbs", "compare_baseline"} {
		t.Run(tool, func(t *testing.T) {
			expectToolError(t, callTool(t, srv, tool, map[string]any{}), "")
		})
	}
}
