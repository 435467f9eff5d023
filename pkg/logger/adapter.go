package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter hands out category loggers whether or not file logging is enabled
type LoggerAdapter struct {
	general     *zap.Logger
	multiLogger *MultiLogger
}

// NewLoggerAdapter creates an adapter that writes categories to their own files
// and everything else to general
func NewLoggerAdapter(general *zap.Logger, multiLogger *MultiLogger) *LoggerAdapter {
	if general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{
		general:     general,
		multiLogger: multiLogger,
	}
}

// NewSingleLoggerAdapter creates an adapter where every category uses one logger
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return NewLoggerAdapter(logger, nil)
}

// General returns the console/application logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.general
}

// Fetch returns the fetch workflow logger
func (la *LoggerAdapter) Fetch() *zap.Logger {
	return la.category(CategoryFetch)
}

// Registry returns the registry logger
func (la *LoggerAdapter) Registry() *zap.Logger {
	return la.category(CategoryRegistry)
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	return la.category(CategoryError)
}

// LogError logs an error to the general log and, when enabled, the error file
func (la *LoggerAdapter) LogError(msg string, fields ...zap.Field) {
	la.general.Error(msg, fields...)
	if la.multiLogger != nil {
		la.multiLogger.LogAppError(msg, fields...)
	}
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	err := la.general.Sync()
	if la.multiLogger != nil {
		if mErr := la.multiLogger.Sync(); mErr != nil {
			err = mErr
		}
	}
	return err
}

func (la *LoggerAdapter) category(c LogCategory) *zap.Logger {
	if la.multiLogger == nil {
		return la.general.With(zap.String("category", string(c)))
	}
	return la.multiLogger.GetLogger(c)
}
