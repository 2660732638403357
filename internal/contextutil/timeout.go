// Package contextutil carries the one context helper the transports share.
package contextutil

import (
	"context"
	"time"
)

// WithTimeout is context.WithTimeout with two conveniences for
// configuration-driven call sites: a non-positive duration means "no extra
// timeout", returning parent with a no-op cancel, and a nil parent falls
// back to context.Background so the caller never has to guard it.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if d <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, d)
}
