package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryFetch    LogCategory = "fetch"    // Fetch workflow events (JSON)
	CategoryRegistry LogCategory = "registry" // Status registry events (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
)

// Categories lists every category that has its own log file
func Categories() []LogCategory {
	return []LogCategory{CategoryFetch, CategoryRegistry, CategoryError}
}

// ValidCategory checks if a category has a log file
func ValidCategory(category LogCategory) bool {
	for _, c := range Categories() {
		if c == category {
			return true
		}
	}
	return false
}

// MultiLogger provides categorized logging with separate output files.
// Raw extractor output is not routed through here.
type MultiLogger struct {
	loggers map[LogCategory]*zap.Logger
	files   []*os.File
	config  MultiLoggerConfig
	mu      sync.RWMutex
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	ml := &MultiLogger{
		loggers: make(map[LogCategory]*zap.Logger),
		config:  config,
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	for _, category := range Categories() {
		catLevel := level
		if category == CategoryError {
			catLevel = zapcore.ErrorLevel
		}
		l, err := ml.createStructuredLogger(category, catLevel)
		if err != nil {
			ml.Close()
			return nil, fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.loggers[category] = l
	}

	return ml, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = "" // Don't include caller for cleaner logs

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	logPath := CategoryLogPath(ml.config.LogsDir, category, time.Now())
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	ml.files = append(ml.files, file)

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return zap.New(core).With(zap.String("category", string(category))), nil
}

// CategoryLogPath returns the log file of a category for the given day
func CategoryLogPath(logsDir string, category LogCategory, date time.Time) string {
	filename := fmt.Sprintf("%s-%s.log", category, date.Format("20060102"))
	return filepath.Join(logsDir, filename)
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}

	// Return error logger as fallback
	return ml.loggers[CategoryError]
}

// Fetch returns the fetch workflow logger
func (ml *MultiLogger) Fetch() *zap.Logger {
	return ml.GetLogger(CategoryFetch)
}

// Registry returns the registry logger
func (ml *MultiLogger) Registry() *zap.Logger {
	return ml.GetLogger(CategoryRegistry)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogFetchEvent logs a fetch lifecycle event with structured data
func (ml *MultiLogger) LogFetchEvent(event string, fields ...zap.Field) {
	ml.Fetch().Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes their files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	for _, f := range ml.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	ml.files = nil
	return lastErr
}
