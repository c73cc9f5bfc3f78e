// Package logging builds the zap.Logger every component of the
// storage-engine core receives as an explicit constructor argument,
// the same way the teacher's storage-node built its logger in
// initLogger before wiring it into every service.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Frrank1/arangodb/internal/config"
)

// New builds a zap.Logger from a LoggingConfig. Format "console" builds
// zap's development config (console encoder with caller info, no
// color); anything else, including "json" and "", builds the production
// JSON config, matching the teacher's dev/prod split in its gateway
// entrypoint.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", level)
	}
}
