package cli

import (
	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/internal/export"
	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	Service  core.ScheduleService
	Store    core.ScheduleStore
	Exporter *export.Exporter
)

// Observability instances, set during app initialization in app.go.
// EventLog, AlertEngine, MetricsCalc and Notifier are nil when the event
// log is disabled.
var (
	EventLog        observability.EventLog
	AlertEngine     observability.AlertEngine
	MetricsCalc     observability.MetricsCalculator
	Notifier        observability.Notifier
	Collector       *observability.ScheduleCollector
	MetricsTextfile string
)
