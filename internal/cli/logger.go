package cli

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"maxpower/internal/trace"
)

// levelOff disables logging entirely.
const levelOff = "off"

func parseLevel(raw string) (zapcore.Level, error) {
	if raw == levelOff {
		return zapcore.InvalidLevel, nil
	}
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return 0, fmt.Errorf("unknown level %q", raw)
	}
	return lvl, nil
}

// newLogger builds a JSON logger on stderr, or a console logger at debug.
func newLogger(raw string) (*zap.Logger, error) {
	lvl, err := parseLevel(raw)
	if err != nil {
		return nil, err
	}
	if raw == levelOff {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// eventLogger logs the orchestrator's trace events at debug level. Bus-level
// events are left to the recorder; they also fire inside the epoch window.
type eventLogger struct {
	logger *zap.Logger
}

func (l eventLogger) Record(e trace.Event) {
	switch e.Kind {
	case trace.EventRegisterWrite, trace.EventSubsystemCompleted:
		return
	}
	l.logger.Debug("Trace event",
		zap.String("kind", string(e.Kind)),
		zap.String("subsystem", e.Subsystem),
		zap.Duration("tick", e.Tick),
		zap.String("reason", e.Reason),
	)
}

// eventSink is rec alone, or rec teed to the logger when debug is enabled.
func eventSink(rec *trace.Recorder, logger *zap.Logger) trace.Sink {
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		return rec
	}
	return trace.Tee{rec, eventLogger{logger: logger}}
}
