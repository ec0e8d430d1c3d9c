package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Fetch        FetchConfig        `mapstructure:"fetch" yaml:"fetch"`
	Queue        QueueConfig        `mapstructure:"queue" yaml:"queue"`
	Catalog      CatalogConfig      `mapstructure:"catalog" yaml:"catalog"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"` // browser origins besides the server's own
}

// FetchConfig contains artifact fetch configuration
type FetchConfig struct {
	BaseDir        string        `mapstructure:"base_dir" yaml:"base_dir"`
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Backoff        time.Duration `mapstructure:"backoff" yaml:"backoff"`
	MinSize        int64         `mapstructure:"min_size" yaml:"min_size"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	ExpectedSuffix string        `mapstructure:"expected_suffix" yaml:"expected_suffix"`
	ExpectedMIME   string        `mapstructure:"expected_mime" yaml:"expected_mime"`
}

// PapersDir returns the root directory for fetched papers
func (c FetchConfig) PapersDir() string {
	return filepath.Join(c.BaseDir, "real-papers")
}

// LockDir returns the directory holding destination lock files
func (c FetchConfig) LockDir() string {
	return filepath.Join(c.BaseDir, ".locks")
}

// LogsDir returns the directory for categorized log files
func (c FetchConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath     string        `mapstructure:"database_path" yaml:"database_path"`
	CheckInterval    time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	ConcurrentLimit  int           `mapstructure:"concurrent_limit" yaml:"concurrent_limit"`
	AutoStartWorkers bool          `mapstructure:"auto_start_workers" yaml:"auto_start_workers"`
	AutoExitOnEmpty  bool          `mapstructure:"auto_exit_on_empty" yaml:"auto_exit_on_empty"`
	EmptyWaitTime    time.Duration `mapstructure:"empty_wait_time" yaml:"empty_wait_time"`
}

// CatalogConfig contains catalog and batch sync configuration
type CatalogConfig struct {
	Path        string        `mapstructure:"path" yaml:"path"` // empty means the embedded default catalog
	PoliteDelay time.Duration `mapstructure:"polite_delay" yaml:"polite_delay"`
	Schedule    string        `mapstructure:"schedule" yaml:"schedule"` // cron expression, empty disables
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Method  string `mapstructure:"method" yaml:"method"` // osascript, notify-send, log
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`      // json, console
	OutputPath string `mapstructure:"output_path" yaml:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Fetch: FetchConfig{
			BaseDir:        "$HOME/question-papers",
			MaxAttempts:    3,
			Timeout:        30 * time.Second,
			Backoff:        2 * time.Second,
			MinSize:        1000,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			ExpectedSuffix: ".pdf",
			ExpectedMIME:   "application/pdf",
		},
		Queue: QueueConfig{
			DatabasePath:     "$HOME/question-papers/queue.db",
			CheckInterval:    5 * time.Second,
			ConcurrentLimit:  2,
			AutoStartWorkers: true,
			AutoExitOnEmpty:  false,
			EmptyWaitTime:    5 * time.Minute,
		},
		Catalog: CatalogConfig{
			Path:        "",
			PoliteDelay: 1 * time.Second,
			Schedule:    "",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "log",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
