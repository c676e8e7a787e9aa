package models

import "time"

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // yaml or sqlite
	Path    string `yaml:"path" mapstructure:"path"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// ScheduleConfig holds engine-wide scheduling defaults.
type ScheduleConfig struct {
	BusyTimeout     time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
	MaxFloatPaths   int           `yaml:"max_float_paths" mapstructure:"max_float_paths"`
	DefaultCalendar string        `yaml:"default_calendar" mapstructure:"default_calendar"`
}

// AlertsConfig sets the schedule health thresholds and where alerts go.
type AlertsConfig struct {
	MaxLoopRejections  int    `yaml:"max_loop_rejections" mapstructure:"max_loop_rejections"`
	WindowHours        int    `yaml:"window_hours" mapstructure:"window_hours"`
	MaxStaleRecomputes int    `yaml:"max_stale_recomputes" mapstructure:"max_stale_recomputes"`
	SlipDays           int    `yaml:"slip_days" mapstructure:"slip_days"`
	WebhookURL         string `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
}

// GlobalConfig holds system-wide settings read from .jzsconfig via Viper.
type GlobalConfig struct {
	Storage         StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Log             LogConfig      `yaml:"log" mapstructure:"log"`
	Schedule        ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Alerts          AlertsConfig   `yaml:"alerts" mapstructure:"alerts"`
	EventsPath      string         `yaml:"events_path" mapstructure:"events_path"`
	MetricsTextfile string         `yaml:"metrics_textfile,omitempty" mapstructure:"metrics_textfile"`
}
