package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// FetchConfig configures the fetch workflow
type FetchConfig struct {
	BaseDir        string        `mapstructure:"base_dir"` // scratch directories are created here
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`     // multiplied by the attempt number
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"` // bounds one transfer attempt
	Deadline       time.Duration `mapstructure:"deadline"`        // bounds the whole workflow, 0 disables
	Workers        int           `mapstructure:"workers"`
	DefaultQuality Quality       `mapstructure:"default_quality"`
}

// ExtractorConfig contains yt-dlp specific configuration
type ExtractorConfig struct {
	Binary       string `mapstructure:"binary"`
	CookieFile   string `mapstructure:"cookie_file"`
	Proxy        string `mapstructure:"proxy"`
	MergeFormat  string `mapstructure:"merge_format"`
	AudioFormat  string `mapstructure:"audio_format"`
	AudioQuality string `mapstructure:"audio_quality"`
}

// RegistryConfig configures the download registry and its history store
type RegistryConfig struct {
	Retention    time.Duration `mapstructure:"retention"`
	DatabasePath string        `mapstructure:"database_path"`
}

// RateLimitConfig configures admission rate limiting
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Fetch: FetchConfig{
			BaseDir:        "$HOME/Downloads/yt-fetch",
			MaxAttempts:    3,
			RetryDelay:     2 * time.Second,
			AttemptTimeout: 10 * time.Minute,
			Deadline:       30 * time.Minute,
			Workers:        2,
			DefaultQuality: QualityBest,
		},
		Extractor: ExtractorConfig{
			Binary:       "yt-dlp",
			MergeFormat:  "mp4",
			AudioFormat:  "mp3",
			AudioQuality: "192K",
		},
		Registry: RegistryConfig{
			Retention:    time.Hour,
			DatabasePath: "$HOME/Downloads/yt-fetch/history.db",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/Downloads/yt-fetch/logs",
		},
	}
}
