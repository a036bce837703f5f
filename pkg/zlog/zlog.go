// Package zlog adapts zerolog to the tracking and evaluator loggers.
package zlog

import (
	"github.com/goliatone/go-tracking"
	"github.com/rs/zerolog"
)

// Logger writes tracking and evaluator events as structured zerolog entries.
// Successful events log at the configured level, failures at error level.
type Logger struct {
	log   zerolog.Logger
	level zerolog.Level
}

// Option configures a Logger.
type Option func(*Logger)

// WithLevel sets the level used for successful events. Defaults to debug.
func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// New wraps log.
func New(log zerolog.Logger, opts ...Option) *Logger {
	l := &Logger{log: log, level: zerolog.DebugLevel}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LogTracking implements tracking.TrackingLogger.
func (l *Logger) LogTracking(event tracking.TrackingLogEvent) {
	entry := l.entry(event.Err).
		Str("component", "tracking").
		Str("op", event.Op)
	if event.Action != "" {
		entry = entry.Str("action", event.Action)
	}
	if event.Key.Valid() {
		entry = entry.Str("entity", event.Key.String())
	}
	if event.State != 0 {
		entry = entry.Str("state", event.State.String())
	}
	if event.Count > 0 {
		entry = entry.Int("count", event.Count)
	}
	if event.Duration > 0 {
		entry = entry.Dur("duration", event.Duration)
	}
	entry.Msg("tracking " + event.Op)
}

// LogEvaluation implements tracking.EvaluatorLogger.
func (l *Logger) LogEvaluation(event tracking.EvaluatorLogEvent) {
	entry := l.entry(event.Err).
		Str("component", "evaluator").
		Str("engine", event.Engine).
		Str("expr", event.Expr)
	if event.Entity.Valid() {
		entry = entry.Str("entity", event.Entity.String())
	}
	if event.Duration > 0 {
		entry = entry.Dur("duration", event.Duration)
	}
	entry.Msg("predicate evaluated")
}

// Options returns the manager options that route both loggers through l.
func (l *Logger) Options() []tracking.ManagerOption {
	return []tracking.ManagerOption{
		tracking.WithLogger(l),
		tracking.WithEvaluatorLogger(l),
	}
}

func (l *Logger) entry(err error) *zerolog.Event {
	if err != nil {
		return l.log.Error().Err(err)
	}
	return l.log.WithLevel(l.level)
}
