package contextutil

import (
	"context"
	"testing"
	"time"
)

func TestWithTimeoutZeroDurationReturnsParentUnchanged(t *testing.T) {
	parent := context.Background()
	ctx, cancel := WithTimeout(parent, 0)
	if ctx != parent {
		t.Fatal("zero duration should return the parent context itself")
	}
	cancel()
	if ctx.Err() != nil {
		t.Fatalf("no-op cancel must not affect the parent: %v", ctx.Err())
	}
}

func TestWithTimeoutAppliesDeadline(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("positive duration should set a deadline")
	}
}

func TestWithTimeoutNilParent(t *testing.T) {
	ctx, cancel := WithTimeout(nil, time.Second)
	if ctx == nil {
		t.Fatal("nil parent must still yield a usable context")
	}
	cancel()
	if ctx.Err() != context.Canceled {
		t.Fatalf("Err() = %v after cancel, want Canceled", ctx.Err())
	}

	ctx, cancel = WithTimeout(nil, 0)
	defer cancel()
	if ctx == nil || ctx.Err() != nil {
		t.Fatalf("nil parent with no timeout: ctx=%v err=%v", ctx, ctx.Err())
	}
}
