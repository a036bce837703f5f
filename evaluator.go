package tracking

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyExpression indicates an empty predicate expression.
var ErrEmptyExpression = errors.New("tracking: expression must not be empty")

// PredicateContext carries the inputs of one predicate evaluation.
type PredicateContext struct {
	// Entity is the candidate entity, nil for ad-hoc evaluations.
	Entity Entity
	// Values are the candidate's properties, exposed as top-level identifiers
	// and under "entity".
	Values map[string]any
	// Policy drives the str_* comparison functions. Nil means CaseInsensitiveSQL.
	Policy *ComparisonPolicy
	Args   map[string]any
	Now    *time.Time
}

func (ctx PredicateContext) withDefaults() PredicateContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Values == nil {
		ctx.Values = map[string]any{}
	}
	if ctx.Policy == nil {
		ctx.Policy = CaseInsensitiveSQL
	}
	return ctx
}

func (ctx PredicateContext) key() EntityKey {
	if ctx.Entity == nil {
		return EntityKey{}
	}
	return ctx.Entity.EntityKey()
}

func (ctx PredicateContext) entityType() string {
	return ctx.key().Type
}

func (ctx PredicateContext) entityState() string {
	if ctx.Entity == nil || ctx.Entity.Aspect() == nil {
		return EntityStateDetached.String()
	}
	return ctx.Entity.Aspect().EntityState().String()
}

// Evaluator executes predicate expressions.
type Evaluator interface {
	Evaluate(ctx PredicateContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable predicate program.
type CompiledRule interface {
	Evaluate(ctx PredicateContext) (any, error)
}

// comparisonFunctions are the policy-bound string helpers available to every
// engine.
func comparisonFunctions(policy *ComparisonPolicy) map[string]func(a, b string) bool {
	return map[string]func(a, b string) bool{
		"str_eq":       policy.Equal,
		"str_ne":       policy.NotEqual,
		"str_starts":   policy.HasPrefix,
		"str_ends":     policy.HasSuffix,
		"str_contains": policy.Contains,
	}
}

func stringArg(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func cacheKey(policy *ComparisonPolicy, expression string) string {
	return policy.String() + "\x00" + expression
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}
