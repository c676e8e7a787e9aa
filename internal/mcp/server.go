// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the schedule engine as tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

const dateLayout = "2006-01-02"

// Server wraps the schedule service and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	svc         core.ScheduleService
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates an MCP server over svc. metricsCalc and alertEngine may
// be nil when the event log is disabled.
func NewServer(svc core.ScheduleService, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		svc:         svc,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "jzs", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type projectInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project identifier"`
}

type taskOutput struct {
	ID           string `json:"id"`
	WBSCode      string `json:"wbs_code"`
	Name         string `json:"name"`
	ParentTaskID string `json:"parent_task_id,omitempty"`
	DurationDays int    `json:"duration_days"`
	Status       string `json:"status"`
	EarlyStart   string `json:"early_start,omitempty"`
	EarlyFinish  string `json:"early_finish,omitempty"`
	LateStart    string `json:"late_start,omitempty"`
	LateFinish   string `json:"late_finish,omitempty"`
	TotalFloat   int    `json:"total_float"`
	FreeFloat    int    `json:"free_float"`
	Critical     bool   `json:"critical"`
}

type relationshipOutput struct {
	ID            string `json:"id"`
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type"`
	LagDays       int    `json:"lag_days"`
}

type scheduleOutput struct {
	ProjectID     string               `json:"project_id"`
	ProjectName   string               `json:"project_name"`
	Version       uint64               `json:"version"`
	AnchorDate    string               `json:"anchor_date"`
	Finish        string               `json:"finish,omitempty"`
	Tasks         []taskOutput         `json:"tasks"`
	Relationships []relationshipOutput `json:"relationships"`
}

type floatPathOutput struct {
	Ordinal    int      `json:"ordinal"`
	TotalFloat int      `json:"total_float"`
	TaskIDs    []string `json:"task_ids"`
}

type criticalPathOutput struct {
	ProjectID  string            `json:"project_id"`
	Version    uint64            `json:"version"`
	Tasks      []taskOutput      `json:"tasks"`
	FloatPaths []floatPathOutput `json:"float_paths"`
}

type addRelationshipInput struct {
	ProjectID     string `json:"project_id" jsonschema:"the project identifier"`
	PredecessorID string `json:"predecessor_id" jsonschema:"task that drives the successor"`
	SuccessorID   string `json:"successor_id" jsonschema:"task that depends on the predecessor"`
	Type          string `json:"type,omitempty" jsonschema:"FS, SS, FF or SF. Defaults to FS."`
	LagDays       int    `json:"lag_days,omitempty" jsonschema:"lag in working days, negative for lead"`
}

type addRelationshipOutput struct {
	Relationship relationshipOutput `json:"relationship"`
	Message      string             `json:"message"`
}

type importWBSInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project identifier"`
	Payload   string `json:"payload" jsonschema:"JSON document with a tasks array of {name, wbs_code, level, duration_days, description}"`
}

type importWBSOutput struct {
	Created []taskOutput `json:"created"`
	Count   int          `json:"count"`
}

type compareBaselineInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project identifier"`
	Baseline  string `json:"baseline" jsonschema:"baseline ID or name"`
}

type varianceOutput struct {
	BaselineID   string                `json:"baseline_id"`
	BaselineName string                `json:"baseline_name"`
	Tasks        []models.TaskVariance `json:"tasks"`
	Added        []string              `json:"added"`
	Removed      []string              `json:"removed"`
	MaxSlipDays  int                   `json:"max_slip_days"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"look-back window for metrics (e.g. 24h, 10d, 6w). Defaults to 7d."`
}

type metricsOutput struct {
	ProjectsCreated    int            `json:"projects_created"`
	TasksCreated       int            `json:"tasks_created"`
	TasksDeleted       int            `json:"tasks_deleted"`
	RelationshipsAdded int            `json:"relationships_added"`
	LoopsRejected      int            `json:"loops_rejected"`
	Recomputes         int            `json:"recomputes"`
	StaleRecomputes    int            `json:"stale_recomputes"`
	BaselinesCaptured  int            `json:"baselines_captured"`
	EventsByProject    map[string]int `json:"events_by_project"`
	EventCount         int            `json:"event_count"`
	OldestEvent        string         `json:"oldest_event,omitempty"`
	NewestEvent        string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_schedule",
		Description: "Get the committed schedule of a project: every task with early/late dates, float and criticality, plus the dependency edges.",
	}, s.handleGetSchedule)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_critical_path",
		Description: "Get the critical path of a project in dependency order, and the minimum-float paths the scheduler found.",
	}, s.handleGetCriticalPath)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_relationship",
		Description: "Add a dependency between two tasks and reschedule. Edges that would close a loop are rejected and the loop is reported.",
	}, s.handleAddRelationship)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "import_wbs",
		Description: "Insert a generated work breakdown as one batch. Parents are inferred from WBS codes; one invalid item rejects the batch.",
	}, s.handleImportWBS)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "compare_baseline",
		Description: "Compare the live schedule with a captured baseline (by ID or name) and report per-task variance in working days.",
	}, s.handleCompareBaseline)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get activity counts from the event log: tasks, relationships, rejected loops, recomputes and baselines.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate schedule health alerts (repeated loop rejections, stale recomputes, finish slipping past the baseline).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGetSchedule(ctx context.Context, _ *gomcp.CallToolRequest, input projectInput) (*gomcp.CallToolResult, scheduleOutput, error) {
	if input.ProjectID == "" {
		return errorResult("project_id is required"), scheduleOutput{}, nil
	}

	sched, err := s.svc.GetSchedule(ctx, input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting schedule: %s", err)), scheduleOutput{}, nil
	}

	out := scheduleOutput{
		ProjectID:     sched.Project.ID,
		ProjectName:   sched.Project.Name,
		Version:       sched.Version,
		AnchorDate:    sched.Project.Settings.AnchorDate.Format(dateLayout),
		Tasks:         []taskOutput{},
		Relationships: []relationshipOutput{},
	}
	if finish, ok := sched.ProjectFinish(); ok {
		out.Finish = finish.Format(dateLayout)
	}
	for _, t := range sched.TaskList() {
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	for _, r := range sched.Relationships() {
		out.Relationships = append(out.Relationships, relationshipToOutput(r))
	}
	return nil, out, nil
}

func (s *Server) handleGetCriticalPath(ctx context.Context, _ *gomcp.CallToolRequest, input projectInput) (*gomcp.CallToolResult, criticalPathOutput, error) {
	if input.ProjectID == "" {
		return errorResult("project_id is required"), criticalPathOutput{}, nil
	}

	sched, err := s.svc.GetSchedule(ctx, input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting critical path: %s", err)), criticalPathOutput{}, nil
	}

	out := criticalPathOutput{
		ProjectID:  sched.Project.ID,
		Version:    sched.Version,
		Tasks:      []taskOutput{},
		FloatPaths: []floatPathOutput{},
	}
	for _, id := range sched.CriticalPath() {
		if t, ok := sched.Tasks[id]; ok {
			out.Tasks = append(out.Tasks, taskToOutput(*t))
		}
	}
	for _, p := range sched.FloatPaths {
		out.FloatPaths = append(out.FloatPaths, floatPathOutput{
			Ordinal: p.Ordinal, TotalFloat: p.TotalFloat, TaskIDs: p.TaskIDs,
		})
	}
	return nil, out, nil
}

func (s *Server) handleAddRelationship(ctx context.Context, _ *gomcp.CallToolRequest, input addRelationshipInput) (*gomcp.CallToolResult, addRelationshipOutput, error) {
	if input.ProjectID == "" || input.PredecessorID == "" || input.SuccessorID == "" {
		return errorResult("project_id, predecessor_id and successor_id are required"), addRelationshipOutput{}, nil
	}

	typ := models.FinishToStart
	if input.Type != "" {
		parsed, err := models.ParseRelationType(input.Type)
		if err != nil {
			return errorResult(err.Error()), addRelationshipOutput{}, nil
		}
		typ = parsed
	}

	rel, err := s.svc.AddRelationship(ctx, models.TaskRelationship{
		ProjectID:     input.ProjectID,
		PredecessorID: input.PredecessorID,
		SuccessorID:   input.SuccessorID,
		Type:          typ,
		LagDays:       input.LagDays,
	})
	if err != nil {
		if loop, ok := core.LoopFromError(err); ok {
			return errorResult(fmt.Sprintf("relationship rejected, it would close the loop %s",
				strings.Join(loop.TaskIDs, " -> "))), addRelationshipOutput{}, nil
		}
		return errorResult(fmt.Sprintf("adding relationship: %s", err)), addRelationshipOutput{}, nil
	}

	out := addRelationshipOutput{
		Relationship: relationshipToOutput(*rel),
		Message:      fmt.Sprintf("%s %s -> %s added", relationTypeCode(rel.Type), rel.PredecessorID, rel.SuccessorID),
	}
	return nil, out, nil
}

func (s *Server) handleImportWBS(ctx context.Context, _ *gomcp.CallToolRequest, input importWBSInput) (*gomcp.CallToolResult, importWBSOutput, error) {
	if input.ProjectID == "" {
		return errorResult("project_id is required"), importWBSOutput{}, nil
	}
	if strings.TrimSpace(input.Payload) == "" {
		return errorResult("payload is required"), importWBSOutput{}, nil
	}

	created, err := s.svc.ImportWBS(ctx, input.ProjectID, []byte(input.Payload))
	if err != nil {
		return errorResult(fmt.Sprintf("importing WBS: %s", err)), importWBSOutput{}, nil
	}

	// Re-read so that the returned tasks carry their computed dates.
	sched, err := s.svc.GetSchedule(ctx, input.ProjectID)
	if err != nil {
		return errorResult(fmt.Sprintf("importing WBS: %s", err)), importWBSOutput{}, nil
	}
	out := importWBSOutput{Created: make([]taskOutput, 0, len(created)), Count: len(created)}
	for _, t := range created {
		if live, ok := sched.Tasks[t.ID]; ok {
			t = *live
		}
		out.Created = append(out.Created, taskToOutput(t))
	}
	return nil, out, nil
}

func (s *Server) handleCompareBaseline(ctx context.Context, _ *gomcp.CallToolRequest, input compareBaselineInput) (*gomcp.CallToolResult, varianceOutput, error) {
	if input.ProjectID == "" || input.Baseline == "" {
		return errorResult("project_id and baseline are required"), varianceOutput{}, nil
	}

	report, err := s.svc.CompareToBaseline(ctx, input.ProjectID, input.Baseline)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return errorResult(fmt.Sprintf("baseline %q not found in project %s", input.Baseline, input.ProjectID)), varianceOutput{}, nil
		}
		return errorResult(fmt.Sprintf("comparing baseline: %s", err)), varianceOutput{}, nil
	}

	out := varianceOutput{
		BaselineID:   report.BaselineID,
		BaselineName: report.BaselineName,
		Tasks:        report.Tasks,
		Added:        report.Added,
		Removed:      []string{},
	}
	if out.Tasks == nil {
		out.Tasks = []models.TaskVariance{}
	}
	if out.Added == nil {
		out.Added = []string{}
	}
	for _, e := range report.Removed {
		out.Removed = append(out.Removed, e.TaskID)
	}
	for _, v := range report.Tasks {
		out.MaxSlipDays = max(out.MaxSlipDays, v.ScheduleVarianceDays)
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceTime, err := observability.SinceCutoff(input.Since, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	m, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		ProjectsCreated:    m.ProjectsCreated,
		TasksCreated:       m.TasksCreated,
		TasksDeleted:       m.TasksDeleted,
		RelationshipsAdded: m.RelationshipsAdded,
		LoopsRejected:      m.LoopsRejected,
		Recomputes:         m.Recomputes,
		StaleRecomputes:    m.StaleRecomputes,
		BaselinesCaptured:  m.BaselinesCaptured,
		EventsByProject:    m.EventsByProject,
		EventCount:         m.EventCount,
	}
	if out.EventsByProject == nil {
		out.EventsByProject = map[string]int{}
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			ProjectID:   a.ProjectID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:           t.ID,
		WBSCode:      t.WBSCode,
		Name:         t.Name,
		ParentTaskID: t.ParentTaskID,
		DurationDays: t.DurationDays,
		Status:       string(t.Status),
	}
	if cpm := t.Schedule; cpm != nil {
		out.EarlyStart = cpm.EarlyStart.Format(dateLayout)
		out.EarlyFinish = cpm.EarlyFinish.Format(dateLayout)
		out.LateStart = cpm.LateStart.Format(dateLayout)
		out.LateFinish = cpm.LateFinish.Format(dateLayout)
		out.TotalFloat = cpm.TotalFloat
		out.FreeFloat = cpm.FreeFloat
		out.Critical = cpm.IsCritical
	}
	return out
}

func relationshipToOutput(r models.TaskRelationship) relationshipOutput {
	return relationshipOutput{
		ID:            r.ID,
		PredecessorID: r.PredecessorID,
		SuccessorID:   r.SuccessorID,
		Type:          relationTypeCode(r.Type),
		LagDays:       r.LagDays,
	}
}

func relationTypeCode(t models.RelationType) string {
	switch t {
	case models.FinishToStart:
		return "FS"
	case models.StartToStart:
		return "SS"
	case models.FinishToFinish:
		return "FF"
	case models.StartToFinish:
		return "SF"
	}
	return string(t)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{EventsByProject: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
