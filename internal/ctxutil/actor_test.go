package ctxutil

import (
	"context"
	"testing"
)

func TestOperatorFromContext(t *testing.T) {
	if got := OperatorFromContext(context.Background()); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
	ctx := WithOperator(context.Background(), "cli:alice")
	if got := OperatorFromContext(ctx); got != "cli:alice" {
		t.Errorf("expected cli:alice, got %q", got)
	}
	if got := OperatorFromContext(WithOperator(ctx, "")); got != "unknown" {
		t.Errorf("expected empty operator to read as unknown, got %q", got)
	}
}
