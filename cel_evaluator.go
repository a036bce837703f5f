package tracking

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes registry functions through call(name, args).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

var celIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var celReserved = map[string]struct{}{
	"entity": {}, "entity_type": {}, "entity_state": {}, "args": {}, "now": {},
	"in": {}, "as": {}, "break": {}, "const": {}, "continue": {}, "else": {},
	"for": {}, "function": {}, "if": {}, "import": {}, "let": {}, "loop": {},
	"package": {}, "namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
	"true": {}, "false": {}, "null": {},
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// celEvaluator executes predicates with cel-go. Checked programs depend on
// the declared variables, so the cache key includes the candidate's
// property names as well as the policy.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Engine names the evaluator in logs and errors.
func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx PredicateContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", ErrEmptyExpression)
	}
	ctx = ctx.withDefaults()
	names := variableNames(ctx.Values)
	program, err := e.loadOrCompile(expression, ctx.Policy, names)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.key(), err)
	}
	out, _, err := program.program.Eval(e.activation(ctx, names))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.key(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", ErrEmptyExpression)
	}
	if _, err := e.loadOrCompile(expression, CaseInsensitiveSQL, nil); err != nil {
		// Unknown identifiers are expected until a candidate declares them.
		if !strings.Contains(err.Error(), "undeclared reference") {
			return nil, wrapEvaluationError("cel", expression, EntityKey{}, err)
		}
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, policy *ComparisonPolicy, names []string) (*celProgram, error) {
	key := cacheKey(policy, strings.Join(names, ",")+"\x00"+expression)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(policy, names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(policy *ComparisonPolicy, names []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("entity", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("entity_type", celgo.StringType),
		celgo.Variable("entity_state", celgo.StringType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("now", celgo.TimestampType),
	}
	for name, fn := range comparisonFunctions(policy) {
		compare := fn
		opts = append(opts, celgo.Function(name,
			celgo.Overload(name+"_string_string",
				[]*celgo.Type{celgo.StringType, celgo.StringType},
				celgo.BoolType,
				celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return types.Bool(compare(stringArg(lhs.Value()), stringArg(rhs.Value())))
				}),
			),
		))
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding),
			),
		))
	}
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx PredicateContext, names []string) map[string]any {
	activation := map[string]any{
		"entity":       ctx.Values,
		"entity_type":  ctx.entityType(),
		"entity_state": ctx.entityState(),
		"args":         ctx.Args,
		"now":          *ctx.Now,
	}
	for _, name := range names {
		activation[name] = ctx.Values[name]
	}
	return activation
}

func (e *celEvaluator) callBinding(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("tracking: call name must be string")
	}
	var args []any
	if list, ok := argsVal.(interface {
		Size() ref.Val
		Get(ref.Val) ref.Val
	}); ok {
		size, _ := list.Size().Value().(int64)
		for i := int64(0); i < size; i++ {
			args = append(args, list.Get(types.Int(i)).Value())
		}
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx PredicateContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.expression)
}

// variableNames returns the property names CEL can declare, sorted.
func variableNames(values map[string]any) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		if !celIdentifier.MatchString(name) {
			continue
		}
		if _, reserved := celReserved[name]; reserved {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
