package logs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Debug switches to the development encoder
// with debug-level output; the default is a production JSON logger.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	return zap.NewProduction()
}

// Nop returns a logger that discards everything. Useful as a default so
// components never have to nil-check their logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}
