package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logLevel is shared by every logger built with NewLogger so config can raise it after startup.
var logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

func NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logLevel.SetLevel(parseLogLevel(os.Getenv("LOG_LEVEL")).Level())
	config.Level = logLevel

	return config.Build()
}

// EnableDebug switches loggers built by NewLogger to debug level. Used when config sets debug: true.
func EnableDebug() {
	logLevel.SetLevel(zap.DebugLevel)
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
