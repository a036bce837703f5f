package tracking

import "time"

// TrackingLogEvent describes one entity manager operation.
type TrackingLogEvent struct {
	Op       string
	Action   string
	Key      EntityKey
	State    EntityState
	Count    int
	Duration time.Duration
	Err      error
}

// TrackingLogger records entity manager events.
type TrackingLogger interface {
	LogTracking(TrackingLogEvent)
}

// TrackingLoggerFunc adapts a function to TrackingLogger.
type TrackingLoggerFunc func(TrackingLogEvent)

// LogTracking implements TrackingLogger.
func (f TrackingLoggerFunc) LogTracking(event TrackingLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopTrackingLogger struct{}

func (noopTrackingLogger) LogTracking(TrackingLogEvent) {}

// EvaluatorLogEvent describes a predicate evaluation attempt.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Entity   EntityKey
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}
