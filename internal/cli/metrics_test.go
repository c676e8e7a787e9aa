package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
)

// --- metricsCmd tests ---

type metricsMock struct {
	calcFn func(since time.Time) (*observability.Metrics, error)
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	return m.calcFn(since)
}

func TestMetricsCmd_NilCalculator(t *testing.T) {
	orig := MetricsCalc
	defer func() { MetricsCalc = orig }()
	MetricsCalc = nil

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil {
		t.Fatal("expected error when MetricsCalc is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetricsCmd_InvalidSinceFormat(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
	}()

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{}, nil
		},
	}

	metricsSince = "fortnight"
	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil || !strings.Contains(err.Error(), "parsing --since") {
		t.Fatalf("expected --since error, got %v", err)
	}
}

func TestMetricsCmd_Success_TableFormat(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	origJSON := metricsJSON
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
		metricsJSON = origJSON
	}()

	metricsSince = "7d"
	metricsJSON = false

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{
				TasksCreated:        5,
				LoopsRejected:       1,
				EventCount:          42,
				RecomputesByTrigger: map[string]int{"create_task": 3, "add_relationship": 2},
				EventsByProject:     map[string]int{"p1": 42},
			}, nil
		},
	}

	var out bytes.Buffer
	metricsCmd.SetOut(&out)
	defer metricsCmd.SetOut(nil)

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Loops rejected:", "add_relationship:", "p1:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Index(out.String(), "add_relationship:") > strings.Index(out.String(), "create_task:") {
		t.Error("triggers should be listed in sorted order")
	}
}

func TestMetricsCmd_Success_JSONFormat(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	origJSON := metricsJSON
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
		metricsJSON = origJSON
	}()

	metricsSince = "7d"
	metricsJSON = true

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{
				TasksCreated: 2,
				EventCount:   10,
			}, nil
		},
	}

	var out bytes.Buffer
	metricsCmd.SetOut(&out)
	defer metricsCmd.SetOut(nil)

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got observability.Metrics
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.TasksCreated != 2 || got.EventCount != 10 {
		t.Errorf("unexpected metrics: %+v", got)
	}
}

func TestMetricsCmd_CalculateError(t *testing.T) {
	orig := MetricsCalc
	origSince := metricsSince
	defer func() {
		MetricsCalc = orig
		metricsSince = origSince
	}()

	metricsSince = "7d"

	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return nil, fmt.Errorf("event log corrupted")
		},
	}

	err := metricsCmd.RunE(metricsCmd, []string{})
	if err == nil {
		t.Fatal("expected error from Calculate")
	}
	if !strings.Contains(err.Error(), "calculating metrics") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMetricsCmd_Textfile(t *testing.T) {
	origCalc, origCollector := MetricsCalc, Collector
	origTextfile, origSince := metricsTextfile, metricsSince
	defer func() {
		MetricsCalc, Collector = origCalc, origCollector
		metricsTextfile, metricsSince = origTextfile, origSince
	}()

	Collector = observability.NewScheduleCollector()
	Collector.MutationDone("create_task", nil)
	MetricsCalc = &metricsMock{
		calcFn: func(since time.Time) (*observability.Metrics, error) {
			return &observability.Metrics{}, nil
		},
	}
	metricsSince = "7d"
	metricsTextfile = filepath.Join(t.TempDir(), "jzs.prom")

	metricsCmd.SetOut(&bytes.Buffer{})
	defer metricsCmd.SetOut(nil)
	if err := metricsCmd.RunE(metricsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(metricsTextfile)
	if err != nil {
		t.Fatalf("textfile not written: %v", err)
	}
	if !strings.Contains(string(data), "jzs_service_operations_total") {
		t.Errorf("textfile missing counter:\n%s", data)
	}
}
