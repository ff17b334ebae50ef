package chrome

import (
	"context"
	"errors"
	"time"
)

// PollInterval is how often waits re-check the page.
const PollInterval = 100 * time.Millisecond

// errKeepWaiting is returned by a poll condition that has not been met yet.
var errKeepWaiting = errors.New("condition not met")

// poll calls check every PollInterval until it returns nil, returns an error
// other than one wrapping errKeepWaiting, or timeout elapses. On timeout the
// last error from check is returned together with ok=false.
func poll(ctx context.Context, timeout time.Duration, check func() error) (last error, ok bool) {
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err(), false
		default:
		}

		last = check()
		if last == nil {
			return nil, true
		}
		if !errors.Is(last, errKeepWaiting) && !isNotFound(last) {
			return last, false
		}

		if time.Now().After(deadline) {
			return last, false
		}

		select {
		case <-ctx.Done():
			return ctx.Err(), false
		case <-time.After(PollInterval):
			// Continue polling
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// TimeoutError reports that a wait ran out of time.
type TimeoutError struct {
	What    string
	Timeout time.Duration
	Last    error
}

func (e *TimeoutError) Error() string {
	msg := "timeout " + e.Timeout.String() + " exceeded waiting for " + e.What
	if e.Last != nil && e.Last != errKeepWaiting {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// Is makes every TimeoutError match ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
