package boundary

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Class is the kind of an absorbed failure. Classification only changes what
// the log record says, never the recovery path.
type Class string

const (
	// ClassTransient covers failures expected to clear on their own:
	// timeouts, cancelled contexts, downstream hiccups.
	ClassTransient Class = "transient"

	// ClassLogic covers programming and data failures inside a handler.
	ClassLogic Class = "logic"

	// ClassPanic is a logic failure that surfaced as a panic.
	ClassPanic Class = "panic"
)

// ErrTransient marks a failure as transient. Handlers wrap downstream errors
// with it when they know the condition is retryable:
//
//	return "", fmt.Errorf("fetch listings: %w: %v", boundary.ErrTransient, err)
var ErrTransient = errors.New("transient failure")

// panicFailure carries a recovered panic value as an error.
type panicFailure struct {
	value any
}

func (p *panicFailure) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func classify(err error) Class {
	var pf *panicFailure
	if errors.As(err, &pf) {
		return ClassPanic
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassLogic
}
