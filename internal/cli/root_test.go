package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := appVersion
	origCommit := appCommit
	origDate := appDate
	defer func() {
		appVersion = origVersion
		appCommit = origCommit
		appDate = origDate
	}()

	SetVersionInfo("1.2.3", "abc1234", "2026-02-13")

	if appVersion != "1.2.3" {
		t.Errorf("appVersion = %q, want 1.2.3", appVersion)
	}
	if appCommit != "abc1234" {
		t.Errorf("appCommit = %q, want abc1234", appCommit)
	}
	if appDate != "2026-02-13" {
		t.Errorf("appDate = %q, want 2026-02-13", appDate)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, err := runCLI(t, "nonexistent-command")
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecute_VersionSubcommand(t *testing.T) {
	origVersion := appVersion
	defer func() { appVersion = origVersion }()
	appVersion = "test-ver"

	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "jzs test-ver\n") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestExecute_EachRunGetsLiveContext(t *testing.T) {
	var ctxErrs []error
	check := &cobra.Command{
		Use: "ctx-check",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctxErrs = append(ctxErrs, commandContext(cmd).Err())
			return nil
		},
	}
	rootCmd.AddCommand(check)
	defer rootCmd.RemoveCommand(check)

	for i := 0; i < 2; i++ {
		if _, err := runCLI(t, "ctx-check"); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	if len(ctxErrs) != 2 {
		t.Fatalf("runs = %d, want 2", len(ctxErrs))
	}
	for i, err := range ctxErrs {
		if err != nil {
			t.Errorf("run %d saw context error %v", i+1, err)
		}
	}
}

func TestCommandRegistration(t *testing.T) {
	want := []string{
		"version", "project", "calendar", "task", "link", "wbs", "schedule",
		"baseline", "export", "loops", "resource", "assign", "metrics", "alerts", "mcp",
	}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("%s command not registered on root", name)
		}
	}
}

func TestCommandsRequireService(t *testing.T) {
	orig := Service
	defer func() { Service = orig }()
	Service = nil

	for _, args := range [][]string{
		{"project", "list"},
		{"schedule", "p1"},
		{"link", "add", "p1", "1", "2"},
		{"mcp", "serve"},
	} {
		_, err := runCLI(t, args...)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Errorf("%v: expected not initialized error, got %v", args, err)
		}
	}
}

func TestRenderTable_HighlightsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1", "x"}, {"2", "y"}}, func(row int) bool { return row == 1 })
	if !strings.Contains(out, "x") || !strings.Contains(out, "y") {
		t.Errorf("table missing cells:\n%s", out)
	}
	if strings.Count(out, "\n") < 4 {
		t.Errorf("expected bordered table, got:\n%s", out)
	}
}
