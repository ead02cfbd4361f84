// Package logging constructs the single zap.SugaredLogger each process
// threads explicitly through its components; there is no package-level
// logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger's level and encoding.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Development enables human-readable console output instead of JSON.
	Development bool
}

// New builds a *zap.SugaredLogger per opts. Construction only fails on
// a malformed level string, which callers surface as a FatalConfigError.
func New(opts Options) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if opts.Level == "" {
		lvl = zapcore.InfoLevel
	} else if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
