package logger

import (
	"context"
	"fmt"
	"strings"

	"adboard-api/internal/observability/requestid"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerContextKey      contextKey = "logger"
	workspaceIDContextKey contextKey = "workspace_id"
	userIDContextKey      contextKey = "user_id"
	rootErrorContextKey   contextKey = "root_err"
)

// rootErrorContainer is stored by pointer so deeper frames can record
// the root cause without threading a new context back up.
type rootErrorContainer struct {
	err error
}

// Logger is the context-aware structured logger. Every line carries
// the service name; request_id, workspace_id, and user_id are pulled
// from the context automatically, and module/action fields default to
// "unknown" rather than being dropped.
type Logger struct {
	zap         *zap.Logger
	serviceName string
}

// Field is a structured log field.
type Field = zapcore.Field

// New builds a JSON logger writing to stdout. level is one of debug,
// info, warn, error.
func New(serviceName string, level string) (*Logger, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("serviceName is required")
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &Logger{
		zap:         z.With(zap.String("service", serviceName)),
		serviceName: serviceName,
	}, nil
}

// WithContext pre-binds the context's tracing fields, for call sites
// that log many lines against the same request.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return &Logger{
		zap:         l.zap.With(fields...),
		serviceName: l.serviceName,
	}
}

// Module tags a log line with the emitting component.
func Module(name string) Field {
	return zap.String("module", name)
}

// Action tags a log line with the operation in flight.
func Action(name string) Field {
	return zap.String("action", name)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...Field) {
	sanitized := sanitizeFields(fields)

	// Missing module/action degrades to "unknown" instead of
	// crashing or silently dropping the line
	hasModule, hasAction := false, false
	for _, f := range sanitized {
		switch f.Key {
		case "module":
			hasModule = true
		case "action":
			hasAction = true
		}
	}
	if !hasModule {
		sanitized = append(sanitized, zap.String("module", "unknown"))
	}
	if !hasAction {
		sanitized = append(sanitized, zap.String("action", "unknown"))
	}

	allFields := append(contextFields(ctx), sanitized...)

	switch level {
	case zapcore.DebugLevel:
		l.zap.Debug(msg, allFields...)
	case zapcore.InfoLevel:
		l.zap.Info(msg, allFields...)
	case zapcore.WarnLevel:
		l.zap.Warn(msg, allFields...)
	case zapcore.ErrorLevel:
		l.zap.Error(msg, allFields...)
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func contextFields(ctx context.Context) []Field {
	var fields []Field
	if requestID := GetRequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if workspaceID := GetWorkspaceIDFromContext(ctx); workspaceID != "" {
		fields = append(fields, zap.String("workspace_id", workspaceID))
	}
	if userID := GetUserIDFromContext(ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return fields
}

// forbiddenLogKeys are credentials and PII that must never appear in
// log output under their own key.
var forbiddenLogKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"password":      true,
	"secret":        true,
	"api_key":       true,
	"database_url":  true,
	"jwt":           true,
	"bearer":        true,
	"credential":    true,
	"email":         true,
	"phone":         true,
	"full_name":     true,
	"first_name":    true,
	"last_name":     true,
	"address":       true,
	"credit_card":   true,
	"ssn":           true,
}

func sanitizeFields(fields []Field) []Field {
	sanitized := make([]Field, 0, len(fields))
	for _, field := range fields {
		if forbiddenLogKeys[strings.ToLower(field.Key)] {
			sanitized = append(sanitized, zap.String(field.Key, "[REDACTED]"))
			continue
		}
		sanitized = append(sanitized, field)
	}
	return sanitized
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func GetRequestIDFromContext(ctx context.Context) string {
	return requestid.GetRequestID(ctx)
}

func GetWorkspaceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(workspaceIDContextKey).(string); ok {
		return id
	}
	return ""
}

func GetUserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey).(string); ok {
		return id
	}
	return ""
}

func SetRequestIDInContext(ctx context.Context, requestID string) context.Context {
	return requestid.SetRequestID(ctx, requestID)
}

func SetWorkspaceIDInContext(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceIDContextKey, workspaceID)
}

func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// GetLogger retrieves the logger from context. Outside a request it
// falls back to a fresh default logger.
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	logger, _ := New("adboard-api", "info")
	return logger
}

func SetLoggerInContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// InitRootErrorContext installs the container SetRootError writes to.
func InitRootErrorContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, rootErrorContextKey, &rootErrorContainer{})
}

// SetRootError records the root cause for the 5xx log line.
func SetRootError(ctx context.Context, err error) {
	if container, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		container.err = err
	}
}

func GetRootError(ctx context.Context) error {
	if container, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		return container.err
	}
	return nil
}
