package logs

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger for the given environment.
// prod uses JSON output, everything else colored console output.
func NewLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// ZapSink mirrors progress events to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink binds runID (when set) to every entry.
func NewZapSink(logger *zap.Logger, runID string) *ZapSink {
	if runID != "" {
		logger = logger.With(zap.String("run_id", runID))
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(level Level, message string, extra Fields) {
	fields := make([]zap.Field, 0, len(extra))
	for k, v := range extra {
		if err, ok := v.(error); ok {
			fields = append(fields, zap.NamedError(k, err))
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}

	switch level {
	case LevelDebug:
		s.logger.Debug(message, fields...)
	case LevelError:
		s.logger.Error(message, fields...)
	case LevelSuccess:
		s.logger.Info(message, append(fields, zap.Bool("success", true))...)
	default:
		s.logger.Info(message, fields...)
	}
}
