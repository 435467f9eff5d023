package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.yt-fetch")
		v.AddConfigPath("/etc/yt-fetch")
	}

	// Environment overrides, e.g. YTFETCH_SERVER_PORT=9090
	v.SetEnvPrefix("YTFETCH")
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

// bindEnvKeys registers every known key so AutomaticEnv applies to Unmarshal
// even when no config file mentions the key
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port",
		"fetch.base_dir", "fetch.max_attempts", "fetch.retry_delay", "fetch.attempt_timeout",
		"fetch.deadline", "fetch.workers", "fetch.default_quality",
		"extractor.binary", "extractor.cookie_file", "extractor.proxy",
		"extractor.merge_format", "extractor.audio_format", "extractor.audio_quality",
		"registry.retention", "registry.database_path",
		"rate_limit.enabled", "rate_limit.requests_per_second", "rate_limit.burst",
		"notification.enabled", "notification.sound", "notification.method",
		"logging.level", "logging.format", "logging.output_path", "logging.logs_dir",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Fetch.BaseDir = expandPath(config.Fetch.BaseDir)
	config.Registry.DatabasePath = expandPath(config.Registry.DatabasePath)
	config.Extractor.CookieFile = expandPath(config.Extractor.CookieFile)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

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

	if config.Fetch.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}

	if config.Fetch.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if !domain.ValidateQuality(config.Fetch.DefaultQuality) {
		return fmt.Errorf("invalid default quality: %s", config.Fetch.DefaultQuality)
	}

	if config.Extractor.Binary == "" {
		return fmt.Errorf("extractor binary not configured")
	}

	// Artifact naming and content types follow the quality tiers
	if ext := domain.QualityAudioOnly.Extension(); config.Extractor.AudioFormat != ext {
		return fmt.Errorf("unsupported audio format: %s (audio-only tier produces %s)", config.Extractor.AudioFormat, ext)
	}
	if ext := domain.QualityBest.Extension(); config.Extractor.MergeFormat != ext {
		return fmt.Errorf("unsupported merge format: %s (video tiers produce %s)", config.Extractor.MergeFormat, ext)
	}

	if config.Registry.DatabasePath == "" {
		return fmt.Errorf("registry database path not configured")
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit needs a positive rate and burst")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
