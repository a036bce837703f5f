package tracking

import (
	"strings"

	"github.com/goliatone/go-tracking/pkg/activity"
)

// ManagerOption configures an EntityManager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	logger          TrackingLogger
	evaluatorLogger EvaluatorLogger
	policy          *ComparisonPolicy
	defaults        *ComparisonDefaults
	activityHooks   activity.Hooks
	activity        activity.Config
	strategy        MergeStrategy
	mergeFunc       MergeFunc
	evaluator       Evaluator
	functions       *FunctionRegistry
	programCache    ProgramCache
	factories       map[string]EntityFactory
	schema          SchemaGenerator
}

func applyManagerOptions(opts []ManagerOption) managerConfig {
	cfg := managerConfig{
		logger:          noopTrackingLogger{},
		evaluatorLogger: noopEvaluatorLogger{},
		defaults:        ProcessComparisonDefaults(),
		activity:        defaultActivityConfig(),
		strategy:        PreserveChanges,
		factories:       map[string]EntityFactory{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger attaches a TrackingLogger. Nil restores the no-op logger.
func WithLogger(logger TrackingLogger) ManagerOption {
	return func(cfg *managerConfig) {
		if logger == nil {
			cfg.logger = noopTrackingLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithEvaluatorLogger attaches an EvaluatorLogger used by local queries.
func WithEvaluatorLogger(logger EvaluatorLogger) ManagerOption {
	return func(cfg *managerConfig) {
		if logger == nil {
			cfg.evaluatorLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evaluatorLogger = logger
	}
}

// WithComparisonPolicy pins the policy used by local queries. Without it the
// manager reads the current default of its ComparisonDefaults on every query.
func WithComparisonPolicy(policy *ComparisonPolicy) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.policy = policy
	}
}

// WithComparisonDefaults replaces the process-wide defaults slot.
func WithComparisonDefaults(defaults *ComparisonDefaults) ManagerOption {
	return func(cfg *managerConfig) {
		if defaults != nil {
			cfg.defaults = defaults
		}
	}
}

// WithMergeStrategy sets the strategy used when a merge call passes the zero
// strategy.
func WithMergeStrategy(strategy MergeStrategy) ManagerOption {
	return func(cfg *managerConfig) {
		if strategy.valid() {
			cfg.strategy = strategy
		}
	}
}

// WithMergeFunc copies incoming values for entities that do not implement
// Merger.
func WithMergeFunc(fn MergeFunc) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.mergeFunc = fn
	}
}

// WithEvaluator sets the default predicate evaluator for local queries.
func WithEvaluator(e Evaluator) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.evaluator = e
	}
}

// WithEntityFactory registers the constructor used by Import for records of
// entityType. Type names are matched case-insensitively.
func WithEntityFactory(entityType string, factory EntityFactory) ManagerOption {
	return func(cfg *managerConfig) {
		key := strings.ToLower(strings.TrimSpace(entityType))
		if key == "" || factory == nil {
			return
		}
		cfg.factories[key] = factory
	}
}
