package contextutil

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds chain operations when no timeout is configured
	DefaultTimeout = 2 * time.Minute
	// ShortTimeout bounds single RPC reads
	ShortTimeout = 15 * time.Second
)

// WithTimeout bounds parent by timeout, or DefaultTimeout when timeout is
// not positive.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// Detached keeps the values of parent but not its cancellation. Operations
// started from an HTTP request run to completion even if the client goes
// away.
func Detached(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return WithTimeout(context.WithoutCancel(parent), timeout)
}

// WithShortTimeout bounds parent by ShortTimeout
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
