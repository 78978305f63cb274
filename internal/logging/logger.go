// Package logging provides structured logging with trace support on top of zap.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger interface for structured logging with trace support. Fields are
// alternating key/value pairs.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})

	// Context-aware logging with trace IDs
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})
	DebugContext(ctx context.Context, msg string, fields ...interface{})

	// Trace ID management
	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// ContextKey represents keys used in context for trace IDs
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
)

// LogLevel represents logging levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// StructuredLogger implements Logger with a zap sugared logger
type StructuredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a structured logger writing to stdout. JSON output is
// the default; set LOG_JSON=false for console output.
func NewLogger(level LogLevel) Logger {
	format := "json"
	if !getEnvBool("LOG_JSON", true) {
		format = "console"
	}
	return NewLoggerWithFormat(level, format)
}

// NewLoggerWithFormat creates a structured logger with an explicit
// encoder format, "json" or "console"
func NewLoggerWithFormat(level LogLevel, format string) Logger {
	core := zapcore.NewCore(newEncoder(format), zapcore.Lock(os.Stdout), level.zapLevel())
	return NewFromZap(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// NewFromZap adapts an existing zap logger
func NewFromZap(z *zap.Logger) Logger {
	return &StructuredLogger{sugar: z.Sugar()}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// getEnvBool gets a boolean environment variable with default
func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

// WithTraceID creates a new logger with a trace ID
func (l *StructuredLogger) WithTraceID(traceID string) Logger {
	return &StructuredLogger{sugar: l.sugar.With(string(TraceIDKey), traceID)}
}

// WithComponent creates a new logger with a component name
func (l *StructuredLogger) WithComponent(component string) Logger {
	return &StructuredLogger{sugar: l.sugar.With("component", component)}
}

// Info logs an info message
func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	l.sugar.Infow(msg, normalize(fields)...)
}

// InfoContext logs an info message with context
func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	l.sugar.Infow(msg, withContext(ctx, fields)...)
}

// Warn logs a warning message
func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	l.sugar.Warnw(msg, normalize(fields)...)
}

// WarnContext logs a warning message with context
func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	l.sugar.Warnw(msg, withContext(ctx, fields)...)
}

// Error logs an error message
func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	l.sugar.Errorw(msg, normalize(fields)...)
}

// ErrorContext logs an error message with context
func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	l.sugar.Errorw(msg, withContext(ctx, fields)...)
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	l.sugar.Debugw(msg, normalize(fields)...)
}

// DebugContext logs a debug message with context
func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	l.sugar.Debugw(msg, withContext(ctx, fields)...)
}

// Fatal logs a fatal message and exits
func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.sugar.Fatalw(msg, normalize(fields)...)
}

// Sync flushes buffered entries
func (l *StructuredLogger) Sync() error {
	return l.sugar.Sync()
}

// normalize turns the key/value list into something zap accepts without
// complaining: keys become strings, a dangling value gets a positional key
// and errors are rendered as their message.
func normalize(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields)+1)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			out = append(out, fmt.Sprintf("field_%d", i), fields[i])
			break
		}
		value := fields[i+1]
		if err, ok := value.(error); ok && err != nil {
			value = err.Error()
		}
		out = append(out, fmt.Sprintf("%v", fields[i]), value)
	}
	return out
}

func withContext(ctx context.Context, fields []interface{}) []interface{} {
	out := normalize(fields)
	if traceID := GetTraceID(ctx); traceID != "" {
		out = append(out, string(TraceIDKey), traceID)
	}
	return out
}

// Default logger instance
var defaultLogger = NewLogger(INFO)

// Package-level functions for convenience
func Info(msg string, fields ...interface{}) {
	defaultLogger.Info(msg, fields...)
}

func Warn(msg string, fields ...interface{}) {
	defaultLogger.Warn(msg, fields...)
}

func Error(msg string, fields ...interface{}) {
	defaultLogger.Error(msg, fields...)
}

func Debug(msg string, fields ...interface{}) {
	defaultLogger.Debug(msg, fields...)
}

func Fatal(msg string, fields ...interface{}) {
	defaultLogger.Fatal(msg, fields...)
}

// Trace ID utilities
func GenerateTraceID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// Component logger creation
func WithComponent(component string) Logger {
	return defaultLogger.WithComponent(component)
}

// Level parsing from string
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// SetDefaultLogger sets the default logger instance
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}
