package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON production logger used by the serve
// command. Context-aware logging with module/action fields lives in
// internal/observability/logger on top of this.
func NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	return config.Build(
		// Report call sites of our wrappers, not the wrappers themselves
		zap.AddCallerSkip(1),
	)
}
