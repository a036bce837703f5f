package tracking

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator executes predicates using github.com/expr-lang/expr. The
// str_* helpers are compiled into the program, so programs are cached per
// comparison policy.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Engine names the evaluator in logs and errors.
func (e *exprEvaluator) Engine() string { return "expr" }

// Evaluate compiles (or loads) expression for ctx.Policy and runs it.
func (e *exprEvaluator) Evaluate(ctx PredicateContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression, ctx.Policy)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, e.environment(ctx))
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, ctx.key(), err)
	}
	return result, nil
}

// Compile validates expression against the default policy and returns a rule
// that recompiles lazily for other policies.
func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", ErrEmptyExpression)
	}
	program, err := e.loadOrCompile(expression, CaseInsensitiveSQL)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{
		evaluator:  e,
		expression: expression,
		programs:   map[*ComparisonPolicy]*exprvm.Program{CaseInsensitiveSQL: program},
	}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string, policy *ComparisonPolicy) (*exprvm.Program, error) {
	key := cacheKey(policy, expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for name, fn := range comparisonFunctions(policy) {
		compare := fn
		options = append(options, exprlang.Function(name, func(params ...any) (any, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("tracking: %s expects 2 arguments, got %d", name, len(params))
			}
			return compare(stringArg(params[0]), stringArg(params[1])), nil
		}))
	}
	for _, name := range e.registryNames() {
		options = append(options, exprlang.Function(name, e.registryFunction(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, EntityKey{}, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	expression string
	programs   map[*ComparisonPolicy]*exprvm.Program
}

func (r *exprCompiledRule) Evaluate(ctx PredicateContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("compiled rule missing evaluator"))
	}
	ctx = ctx.withDefaults()
	program, ok := r.programs[ctx.Policy]
	if !ok {
		var err error
		program, err = r.evaluator.loadOrCompile(r.expression, ctx.Policy)
		if err != nil {
			return nil, err
		}
		r.programs[ctx.Policy] = program
	}
	result, err := exprlang.Run(program, r.evaluator.environment(ctx))
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.key(), err)
	}
	return result, nil
}

func (e *exprEvaluator) environment(ctx PredicateContext) map[string]any {
	env := make(map[string]any, len(ctx.Values)+5)
	for key, value := range ctx.Values {
		env[key] = value
	}
	env["entity"] = ctx.Values
	env["entity_type"] = ctx.entityType()
	env["entity_state"] = ctx.entityState()
	env["args"] = ctx.Args
	env["now"] = *ctx.Now
	return env
}

func (e *exprEvaluator) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}
