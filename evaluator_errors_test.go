package tracking

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	key := EntityKey{Type: "order", ID: "1"}
	err := wrapEvaluationError("expr", "total > 10", key, base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "total > 10" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Entity != key {
		t.Fatalf("expected entity metadata, got %v", evalErr.Entity)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if !strings.Contains(err.Error(), "order:1") {
		t.Fatalf("expected entity key in message, got %q", err.Error())
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", EntityKey{Type: "order", ID: "9"}, existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Entity.ID != "9" {
		t.Fatalf("entity should be filled, got %v", existing.Entity)
	}
}

func TestWrapEvaluatorErrorKeepsPrefixedErrors(t *testing.T) {
	if err := wrapEvaluatorError("expr", ErrEmptyExpression); !errors.Is(err, ErrEmptyExpression) || err.Error() != ErrEmptyExpression.Error() {
		t.Fatalf("expected prefixed error untouched, got %v", err)
	}
	err := wrapEvaluatorError("cel", errors.New("bad"))
	if err.Error() != "tracking: cel evaluator: bad" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
