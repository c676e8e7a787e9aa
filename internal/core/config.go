// Package core contains the scheduling engine of Jizoni Schedule: the
// calendar model, dependency graph, WBS hierarchy, CPM scheduler,
// baselines and the mutation service, plus configuration loading.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// ConfigFileName is the name of the global configuration file.
const ConfigFileName = ".jzsconfig"

// ConfigurationManager loads and validates the .jzsconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .jzsconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Storage: models.StorageConfig{Backend: "yaml", Path: "data"},
		Log:     models.LogConfig{Level: "info", Format: "text"},
		Schedule: models.ScheduleConfig{
			BusyTimeout:     DefaultBusyTimeout,
			MaxFloatPaths:   DefaultMaxFloatPaths,
			DefaultCalendar: DefaultCalendarID,
		},
		Alerts: models.AlertsConfig{
			MaxLoopRejections:  3,
			WindowHours:        24,
			MaxStaleRecomputes: 5,
			SlipDays:           5,
		},
		EventsPath: "events.jsonl",
	}
}

// LoadGlobalConfig reads .jzsconfig from the base path. Missing keys fall
// back to defaults and JZS_* environment variables override the file
// (JZS_STORAGE_BACKEND, JZS_LOG_LEVEL, ...).
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("JZS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("events_path", cfg.EventsPath)
	v.SetDefault("schedule.busy_timeout", cfg.Schedule.BusyTimeout)
	v.SetDefault("schedule.max_float_paths", cfg.Schedule.MaxFloatPaths)
	v.SetDefault("schedule.default_calendar", cfg.Schedule.DefaultCalendar)
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("alerts.max_loop_rejections", cfg.Alerts.MaxLoopRejections)
	v.SetDefault("alerts.window_hours", cfg.Alerts.WindowHours)
	v.SetDefault("alerts.max_stale_recomputes", cfg.Alerts.MaxStaleRecomputes)
	v.SetDefault("alerts.slip_days", cfg.Alerts.SlipDays)
	v.SetDefault("alerts.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Storage.Backend = strings.ToLower(v.GetString("storage.backend"))
	cfg.Storage.Path = v.GetString("storage.path")
	cfg.Log.Level = strings.ToLower(v.GetString("log.level"))
	cfg.Log.Format = strings.ToLower(v.GetString("log.format"))
	cfg.EventsPath = v.GetString("events_path")
	cfg.Schedule.BusyTimeout = v.GetDuration("schedule.busy_timeout")
	cfg.Schedule.MaxFloatPaths = v.GetInt("schedule.max_float_paths")
	cfg.Schedule.DefaultCalendar = v.GetString("schedule.default_calendar")
	cfg.MetricsTextfile = v.GetString("metrics_textfile")
	cfg.Alerts.MaxLoopRejections = v.GetInt("alerts.max_loop_rejections")
	cfg.Alerts.WindowHours = v.GetInt("alerts.window_hours")
	cfg.Alerts.MaxStaleRecomputes = v.GetInt("alerts.max_stale_recomputes")
	cfg.Alerts.SlipDays = v.GetInt("alerts.slip_days")
	cfg.Alerts.WebhookURL = v.GetString("alerts.webhook_url")

	return cfg, nil
}

var (
	validBackends   = map[string]bool{"yaml": true, "sqlite": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// ValidateConfig checks cfg for invalid values and reports every problem
// in a single error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validBackends[cfg.Storage.Backend] {
		errs = append(errs, fmt.Sprintf("storage.backend %q is invalid, must be one of: yaml, sqlite", cfg.Storage.Backend))
	}
	if cfg.Storage.Path == "" {
		errs = append(errs, "storage.path must not be empty")
	}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}
	if !validLogFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: text, json", cfg.Log.Format))
	}
	if cfg.Schedule.BusyTimeout <= 0 || cfg.Schedule.BusyTimeout > 10*time.Minute {
		errs = append(errs, fmt.Sprintf("schedule.busy_timeout %s must be between 0s and 10m", cfg.Schedule.BusyTimeout))
	}
	if cfg.Schedule.MaxFloatPaths < 1 {
		errs = append(errs, fmt.Sprintf("schedule.max_float_paths must be positive, got %d", cfg.Schedule.MaxFloatPaths))
	}
	if cfg.Schedule.DefaultCalendar == "" {
		errs = append(errs, "schedule.default_calendar must not be empty")
	}

	if cfg.Alerts.MaxLoopRejections < 0 || cfg.Alerts.MaxStaleRecomputes < 0 || cfg.Alerts.SlipDays < 0 {
		errs = append(errs, "alerts thresholds must not be negative")
	}
	if cfg.Alerts.WindowHours < 1 {
		errs = append(errs, fmt.Sprintf("alerts.window_hours must be positive, got %d", cfg.Alerts.WindowHours))
	}
	if u := cfg.Alerts.WebhookURL; u != "" && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		errs = append(errs, fmt.Sprintf("alerts.webhook_url %q must be an http(s) URL", u))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
