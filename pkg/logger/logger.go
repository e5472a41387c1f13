package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   *zap.Logger
	Sugar *zap.SugaredLogger
)

// Init builds the process logger, stores it in Log/Sugar and returns it.
// Unknown levels fall back to info.
func Init(level string) *zap.Logger {
	Log = New(level, zapcore.AddSync(os.Stdout))
	Sugar = Log.Sugar()
	return Log
}

// New returns a JSON logger writing to w. Init uses it for stdout; tests
// pass their own sink.
func New(level string, w zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	core := zapcore.NewCore(encoder, w, ParseLevel(level))

	return zap.New(core, zap.AddCaller())
}

func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Performance records how long an operation took.
func Performance(log *zap.SugaredLogger, operation string, d time.Duration, kv ...any) {
	fields := append([]any{"operation", operation, "duration_ms", d.Milliseconds()}, kv...)
	log.Infow("performance", fields...)
}

// Interaction records a slash command invocation.
func Interaction(log *zap.SugaredLogger, userID, serverID, command string, kv ...any) {
	fields := append([]any{"user_id", userID, "server_id", serverID, "command", command}, kv...)
	log.Infow("user interaction", fields...)
}
