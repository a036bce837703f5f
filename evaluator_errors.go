package tracking

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Entity EntityKey
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	entity := "<none>"
	if e.Entity.Valid() {
		entity = e.Entity.String()
	}
	return fmt.Sprintf("tracking: %s evaluator %s entity=%s: %v", e.Engine, describeExpression(e.Expr), entity, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "tracking:") {
		return err
	}
	return fmt.Errorf("tracking: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr string, entity EntityKey, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if !evalErr.Entity.Valid() {
			evalErr.Entity = entity
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Entity: entity,
		Err:    err,
	}
}
