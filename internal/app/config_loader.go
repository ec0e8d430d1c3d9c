package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/yourusername/qpaper-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.qpaper")
		v.AddConfigPath("/etc/qpaper")
	}

	v.SetEnvPrefix("QPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every known key so QPAPER_* variables apply without a config file
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.allowed_origins",
		"fetch.base_dir", "fetch.max_attempts", "fetch.timeout", "fetch.backoff", "fetch.min_size",
		"fetch.user_agent", "fetch.expected_suffix", "fetch.expected_mime",
		"queue.database_path", "queue.check_interval", "queue.concurrent_limit",
		"queue.auto_start_workers", "queue.auto_exit_on_empty", "queue.empty_wait_time",
		"catalog.path", "catalog.polite_delay", "catalog.schedule",
		"notification.enabled", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Fetch.BaseDir = expandPath(config.Fetch.BaseDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	config.Catalog.Path = expandPath(config.Catalog.Path)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return path
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Fetch.BaseDir == "" {
		return fmt.Errorf("fetch base directory not configured")
	}

	if config.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}

	if config.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	if config.Fetch.Backoff < 0 {
		return fmt.Errorf("fetch backoff cannot be negative")
	}

	if config.Fetch.MinSize < 0 {
		return fmt.Errorf("min size cannot be negative")
	}

	if config.Queue.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	if config.Catalog.Schedule != "" {
		if _, err := cron.ParseStandard(config.Catalog.Schedule); err != nil {
			return fmt.Errorf("invalid catalog schedule %q: %w", config.Catalog.Schedule, err)
		}
	}

	switch config.Notification.Method {
	case "", "log", "osascript", "notify-send":
	default:
		return fmt.Errorf("unknown notification method %q", config.Notification.Method)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server", config.Server)
	v.Set("fetch", config.Fetch)
	v.Set("queue", config.Queue)
	v.Set("catalog", config.Catalog)
	v.Set("notification", config.Notification)
	v.Set("logging", config.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
