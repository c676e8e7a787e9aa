// Package internal provides the App struct that wires all components of
// Jizoni Schedule together and initializes the CLI layer.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/internal/cli"
	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/internal/export"
	"github.com/valter-silva-au/jizoni-schedule/internal/observability"
	"github.com/valter-silva-au/jizoni-schedule/internal/storage"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// sqliteFileName is the database file created inside storage.path when
// that path is a directory.
const sqliteFileName = "jzs.db"

// App holds all service dependencies of Jizoni Schedule.
type App struct {
	BasePath string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	Logger *slog.Logger

	// Storage layer
	Store  core.TxStore
	closer func() error

	// Core services
	Service  core.ScheduleService
	Exporter *export.Exporter

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
	Collector   *observability.ScheduleCollector
}

// NewApp creates and wires all components. basePath is the directory that
// holds .jzsconfig; relative paths in the config resolve against it.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = observability.NewLogger(observability.LoggerConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// --- Storage layer ---
	if err := app.openStore(cfg.Storage); err != nil {
		return nil, err
	}

	// --- Observability ---
	app.Collector = observability.NewScheduleCollector()
	if cfg.EventsPath != "" {
		app.EventLog, err = observability.NewJSONLEventLog(app.resolve(cfg.EventsPath))
		if err != nil {
			// Non-fatal: run without the event log.
			app.Logger.Warn("event log disabled", "path", cfg.EventsPath, "error", err)
			app.EventLog = nil
		}
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = &eventLogAdapter{log: app.EventLog}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.ThresholdsFromConfig(cfg.Alerts))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Alerts.WebhookURL != "" {
		app.Notifier = observability.NewWebhookNotifier(cfg.Alerts.WebhookURL)
	}

	// --- Core services ---
	app.Service = core.NewScheduleService(app.Store, core.ServiceOptions{
		BusyTimeout:       cfg.Schedule.BusyTimeout,
		MaxFloatPaths:     cfg.Schedule.MaxFloatPaths,
		DefaultCalendarID: cfg.Schedule.DefaultCalendar,
		Logger:            app.Logger,
		Events:            events,
		Metrics:           app.Collector,
	})
	app.Exporter = export.NewExporter(app.Store, export.Options{ExportedBy: os.Getenv("USER")})

	cli.Service = app.Service
	cli.Store = app.Store
	cli.Exporter = app.Exporter

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier
	cli.Collector = app.Collector
	if cfg.MetricsTextfile != "" {
		cli.MetricsTextfile = app.resolve(cfg.MetricsTextfile)
	}

	return app, nil
}

func (a *App) openStore(cfg models.StorageConfig) error {
	path := a.resolve(cfg.Path)
	switch cfg.Backend {
	case "sqlite":
		if !strings.HasSuffix(path, ".db") {
			path = filepath.Join(path, sqliteFileName)
		}
		s, err := storage.NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.Store = s
		a.closer = s.Close
	default:
		a.Store = storage.NewYAMLStore(path)
	}
	a.Logger.Debug("store opened", "backend", cfg.Backend, "path", path)
	return nil
}

func (a *App) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.BasePath, path)
}

// Close releases the store and the event log.
func (a *App) Close() error {
	var firstErr error
	if a.closer != nil {
		firstErr = a.closer()
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the base directory: JZS_HOME when set,
// otherwise the nearest ancestor of the working directory that holds a
// .jzsconfig, falling back to the working directory itself.
func ResolveBasePath() string {
	if home := os.Getenv("JZS_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

// warnEvents are logged at WARN level in the event log.
var warnEvents = map[string]bool{
	"loop.rejected":  true,
	"schedule.stale": true,
}

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := "INFO"
	if warnEvents[eventType] {
		level = "WARN"
	}
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
