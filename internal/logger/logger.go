// Package logger builds the zap logger and carries it through request contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/bookqa/internal/version"
)

// NewLogger creates a zap logger for the given environment, tagged with the
// component name and build version.
// prod uses unsampled JSON output; local, dev, docker and test use console output.
// level (if non-empty) overrides the default level: debug, info, warn, error.
func NewLogger(env, component, level string) (*zap.Logger, error) {
	cfg, err := newConfig(env, component, level)
	if err != nil {
		return nil, err
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func newConfig(env, component, level string) (zap.Config, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	case "local", "dev", "docker", "test":
		cfg = zap.NewDevelopmentConfig()
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	if component != "" {
		cfg.InitialFields = map[string]any{
			"component": component,
			"version":   version.Version,
		}
	}
	return cfg, nil
}
