package tracking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNonBooleanPredicate indicates a predicate that evaluated to something
// other than a bool.
var ErrNonBooleanPredicate = errors.New("tracking: predicate must evaluate to a bool")

// PropertyReader exposes an entity's properties to predicates and exports.
type PropertyReader interface {
	Properties() map[string]any
}

// LocalQuery is a predicate evaluated against the entities already in the
// cache, using the comparison rules of the remote service.
type LocalQuery struct {
	expr           string
	entityType     string
	evaluator      Evaluator
	policy         *ComparisonPolicy
	args           map[string]any
	includeDeleted bool
}

// LocalQueryOption configures a LocalQuery.
type LocalQueryOption func(*LocalQuery)

// ForEntityType restricts candidates to one entity type (case-insensitive).
func ForEntityType(entityType string) LocalQueryOption {
	return func(q *LocalQuery) {
		q.entityType = strings.TrimSpace(entityType)
	}
}

// WithQueryEvaluator overrides the manager's evaluator for this query.
func WithQueryEvaluator(e Evaluator) LocalQueryOption {
	return func(q *LocalQuery) {
		q.evaluator = e
	}
}

// WithQueryPolicy overrides the manager's comparison policy for this query.
func WithQueryPolicy(policy *ComparisonPolicy) LocalQueryOption {
	return func(q *LocalQuery) {
		q.policy = policy
	}
}

// WithQueryArgs exposes args to the predicate under "args".
func WithQueryArgs(args map[string]any) LocalQueryOption {
	return func(q *LocalQuery) {
		q.args = args
	}
}

// IncludeDeleted keeps Deleted entities among the candidates.
func IncludeDeleted() LocalQueryOption {
	return func(q *LocalQuery) {
		q.includeDeleted = true
	}
}

// NewLocalQuery builds a query for expr.
func NewLocalQuery(expr string, opts ...LocalQueryOption) (*LocalQuery, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyExpression
	}
	q := &LocalQuery{expr: expr}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q, nil
}

// Expr returns the predicate source.
func (q *LocalQuery) Expr() string { return q.expr }

// EntityType returns the type filter, empty for every type.
func (q *LocalQuery) EntityType() string { return q.entityType }

// ExecuteLocal returns, in attach order, the attached entities that satisfy
// q. Entities that do not implement PropertyReader are never candidates.
func (m *EntityManager) ExecuteLocal(q *LocalQuery) ([]Entity, error) {
	if q == nil {
		return nil, ErrEmptyExpression
	}
	evaluator := m.resolveEvaluator(q)
	engine := evaluatorEngineName(evaluator)
	rule, err := evaluator.Compile(q.expr)
	if err != nil {
		m.cfg.evaluatorLogger.LogEvaluation(EvaluatorLogEvent{Engine: engine, Expr: q.expr, Err: err})
		return nil, err
	}

	policy := q.policy
	if policy == nil {
		policy = m.ComparisonPolicy()
	}
	now := time.Now()

	var matches []Entity
	for _, key := range m.order {
		e := m.entities[key]
		if q.entityType != "" && !strings.EqualFold(key.Type, q.entityType) {
			continue
		}
		if !q.includeDeleted && e.Aspect().state.IsDeleted() {
			continue
		}
		reader, ok := e.(PropertyReader)
		if !ok {
			continue
		}
		ctx := PredicateContext{
			Entity: e,
			Values: reader.Properties(),
			Policy: policy,
			Args:   q.args,
			Now:    &now,
		}
		start := time.Now()
		result, evalErr := rule.Evaluate(ctx)
		matched, isBool := result.(bool)
		if evalErr == nil && !isBool {
			evalErr = fmt.Errorf("%w: got %T", ErrNonBooleanPredicate, result)
		}
		evalErr = wrapEvaluationError(engine, q.expr, key, evalErr)
		m.cfg.evaluatorLogger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     q.expr,
			Entity:   key,
			Duration: time.Since(start),
			Err:      evalErr,
		})
		if evalErr != nil {
			return nil, evalErr
		}
		if matched {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// QueryLocal is ExecuteLocal returning only the matches of type T.
func QueryLocal[T Entity](m *EntityManager, q *LocalQuery) ([]T, error) {
	matches, err := m.ExecuteLocal(q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(matches))
	for _, e := range matches {
		if typed, ok := e.(T); ok {
			out = append(out, typed)
		}
	}
	return out, nil
}

func (m *EntityManager) resolveEvaluator(q *LocalQuery) Evaluator {
	if q.evaluator != nil {
		return q.evaluator
	}
	if m.cfg.evaluator != nil {
		return m.cfg.evaluator
	}
	var opts []ExprEvaluatorOption
	if m.cfg.programCache != nil {
		opts = append(opts, ExprWithProgramCache(m.cfg.programCache))
	}
	if m.cfg.functions != nil {
		opts = append(opts, ExprWithFunctionRegistry(m.cfg.functions))
	}
	m.cfg.evaluator = NewExprEvaluator(opts...)
	return m.cfg.evaluator
}
