package logging

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"scout/internal/utils"
)

// Logger defines a minimal, printf-style logging contract.
//
// It intentionally matches the agent domain logger interface so code can depend
// on this package without importing internal/agent/ports.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// NewComponentLogger returns the default application logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return utils.NewComponentLogger(component)
}

// NewLLMLogger returns a logger that writes to the dedicated LLM log file (scout-llm.log).
func NewLLMLogger(component string) Logger {
	return utils.NewCategorizedLogger(utils.LogCategoryLLM, component)
}

// NewMemoryLogger returns a logger that writes to the dedicated memory log file (scout-memory.log).
func NewMemoryLogger(component string) Logger {
	return utils.NewCategorizedLogger(utils.LogCategoryMemory, component)
}

type stderrLogger struct{}

// Stderr returns a logger that writes leveled lines to standard error. Used
// for verbose CLI runs alongside the file loggers.
func Stderr() Logger {
	return stderrLogger{}
}

func (stderrLogger) Debug(format string, args ...any) { stderrLine("DEBUG", format, args) }
func (stderrLogger) Info(format string, args ...any)  { stderrLine("INFO", format, args) }
func (stderrLogger) Warn(format string, args ...any)  { stderrLine("WARN", format, args) }
func (stderrLogger) Error(format string, args ...any) { stderrLine("ERROR", format, args) }

func stderrLine(level, format string, args []any) {
	fmt.Fprintf(os.Stderr, "%s [%s] %s\n",
		time.Now().Format("15:04:05"), level, fmt.Sprintf(format, args...))
}

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if IsNil(logger) {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}
