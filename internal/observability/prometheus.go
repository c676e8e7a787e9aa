package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
)

const metricsNamespace = "jzs"

// ScheduleCollector records service activity as Prometheus metrics. It
// satisfies core.ScheduleMetrics.
type ScheduleCollector struct {
	registry *prometheus.Registry

	// mutations counts service operations. Labels: op, result (ok,
	// validation, concurrency, structural, error).
	mutations *prometheus.CounterVec

	// recomputeSeconds measures CPM passes. Labels: project.
	recomputeSeconds *prometheus.HistogramVec

	// scheduledTasks is the task count of the last pass. Labels: project.
	scheduledTasks *prometheus.GaugeVec

	// loopsRejected counts relationships refused as loops. Labels: project.
	loopsRejected *prometheus.CounterVec
}

var _ core.ScheduleMetrics = (*ScheduleCollector)(nil)

// NewScheduleCollector registers the schedule metrics on a fresh registry.
func NewScheduleCollector() *ScheduleCollector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &ScheduleCollector{
		registry: reg,
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Schedule service operations by operation and result",
		}, []string{"op", "result"}),
		recomputeSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cpm",
			Name:      "recompute_seconds",
			Help:      "Duration of forward and backward CPM passes",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"project"}),
		scheduledTasks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cpm",
			Name:      "scheduled_tasks",
			Help:      "Tasks covered by the latest CPM pass",
		}, []string{"project"}),
		loopsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "graph",
			Name:      "loops_rejected_total",
			Help:      "Relationships rejected because they would close a loop",
		}, []string{"project"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (c *ScheduleCollector) Registry() *prometheus.Registry { return c.registry }

// MutationDone records the outcome of a service operation.
func (c *ScheduleCollector) MutationDone(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(core.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	c.mutations.WithLabelValues(op, result).Inc()
}

// RecomputeDone records one CPM pass.
func (c *ScheduleCollector) RecomputeDone(projectID string, tasks int, elapsed time.Duration) {
	c.recomputeSeconds.WithLabelValues(projectID).Observe(elapsed.Seconds())
	c.scheduledTasks.WithLabelValues(projectID).Set(float64(tasks))
}

// LoopRejected records a refused relationship.
func (c *ScheduleCollector) LoopRejected(projectID string) {
	c.loopsRejected.WithLabelValues(projectID).Inc()
}

// WriteTextfile writes the current metrics in the node_exporter textfile
// format.
func (c *ScheduleCollector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
