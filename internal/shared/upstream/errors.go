// Package upstream holds the error vocabulary shared by the clients that
// talk to the stack's backends and the domain code that classifies their
// failures.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a backend that could not be reached at all:
// connection refused, timeout, or an open circuit breaker.
var ErrUnavailable = errors.New("backend unavailable")

// ErrAbandoned marks a call cut short because the caller's context ended.
// It says nothing about the backend's health.
var ErrAbandoned = errors.New("request abandoned")

// errCallTimeout is the cause recorded when a Bound expires.
var errCallTimeout = errors.New("backend did not answer in time")

// Error is a non-success reply from a backend.
type Error struct {
	Service string
	Status  int
	Body    string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s API error: %d - %s", e.Service, e.Status, e.Body)
}

// Unavailable wraps a transport fault so errors.Is(err, ErrUnavailable) holds
// while the fault message stays visible.
func Unavailable(service string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, service, cause)
}

// IsUnavailable reports whether err marks an unreachable backend.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// AsError extracts the upstream reply carried by err, if any.
func AsError(err error) (*Error, bool) {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}

// Bound limits one backend call to d. Unlike a deadline inherited from the
// caller, expiry of this bound is the backend's fault: IsAbandoned reports
// false for it. d <= 0 leaves the call unbounded.
func Bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, errCallTimeout)
}

// IsAbandoned reports whether ctx ended because the caller gave up, as
// opposed to a Bound expiring.
func IsAbandoned(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(context.Cause(ctx), errCallTimeout)
}

// Abandoned wraps the context error of a call the caller gave up on.
func Abandoned(ctx context.Context, service string) error {
	return fmt.Errorf("%w: %s: %w", ErrAbandoned, service, context.Cause(ctx))
}
