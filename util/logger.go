package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sync"
)

var (
	logger   *zap.Logger
	loggerMu sync.Mutex
)

// GetLogger returns the process logger named after packageName. function is kept for
// call-site readability and is not attached to the entries.
func GetLogger(packageName, function string) *zap.Logger {
	loggerMu.Lock()
	if logger == nil {
		logger = buildLogger()
	}
	l := logger
	loggerMu.Unlock()
	return l.Named(packageName)
}

func SetupLoggerConfig() {
	l := buildLogger()
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// SetLogger replaces the process logger. Embedders that already own a zap logger use
// it instead of the toml [log] section.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func buildLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	if IsConfigLoaded() {
		logConfig := GetConfig().Logger
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logConfig.Level)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
		if logConfig.Format == "console" {
			config.Encoding = "console"
		}
	}
	l, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
