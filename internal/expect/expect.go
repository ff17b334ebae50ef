// Package expect provides auto-waiting assertions over page locators.
// Each assertion re-checks the element every chrome.PollInterval until it
// holds or the timeout runs out.
package expect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomyan/velvetcheck/internal/chrome"
)

// DefaultTimeout is how long assertions wait when no timeout is given.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is matched by every assertion that ran out of time, whether its
// own timeout elapsed or the context deadline passed first.
var ErrTimeout = errors.New("assertion timed out")

// Error describes a failed assertion.
type Error struct {
	Locator   string
	Assertion string
	Timeout   time.Duration
	Detail    string
	Err       error // underlying failure when the assertion could not be evaluated
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("expect(%s).%s", e.Locator, e.Assertion)
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	msg := fmt.Sprintf("%s: timeout %s exceeded", prefix, e.Timeout)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTimeout
}

// Is matches ErrTimeout when the context deadline cut the assertion short.
func (e *Error) Is(target error) bool {
	return target == ErrTimeout && errors.Is(e.Err, context.DeadlineExceeded)
}

// Expect runs assertions with a shared timeout.
type Expect struct {
	Timeout time.Duration
}

// New returns an Expect that waits up to timeout, or DefaultTimeout when timeout <= 0.
func New(timeout time.Duration) *Expect {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Expect{Timeout: timeout}
}

// condition inspects a snapshot. A nil state means the locator matched nothing.
// It returns whether the assertion holds and, if not, what was observed.
type condition func(st *chrome.ElementState) (bool, string)

func (e *Expect) waitFor(ctx context.Context, loc *chrome.Locator, assertion string, cond condition) error {
	fail := &Error{Locator: loc.String(), Assertion: assertion, Timeout: e.Timeout}
	deadline := time.Now().Add(e.Timeout)

	for {
		st, err := loc.State(ctx)
		switch {
		case errors.Is(err, chrome.ErrNotFound):
			st = nil
		case err != nil:
			// Strict mode violations and protocol failures do not heal by waiting
			fail.Err = err
			return fail
		}

		ok, detail := cond(st)
		if ok {
			return nil
		}
		fail.Detail = detail

		if time.Now().After(deadline) {
			fail.Err = nil
			return fail
		}

		select {
		case <-ctx.Done():
			fail.Err = ctx.Err()
			return fail
		case <-time.After(chrome.PollInterval):
		}
	}
}

func visible(st *chrome.ElementState) bool {
	return st != nil && st.Attached && st.Visible
}

// Visible waits until the locator matches exactly one visible element.
func (e *Expect) Visible(ctx context.Context, loc *chrome.Locator) error {
	return e.waitFor(ctx, loc, "toBeVisible", func(st *chrome.ElementState) (bool, string) {
		switch {
		case st == nil:
			return false, "element not found"
		case !visible(st):
			return false, "element is not visible"
		}
		return true, ""
	})
}

// Hidden waits until the locator matches nothing or an invisible element.
func (e *Expect) Hidden(ctx context.Context, loc *chrome.Locator) error {
	return e.waitFor(ctx, loc, "toBeHidden", func(st *chrome.ElementState) (bool, string) {
		if visible(st) {
			return false, "element is visible"
		}
		return true, ""
	})
}

// Enabled waits until the element exists and is enabled.
func (e *Expect) Enabled(ctx context.Context, loc *chrome.Locator) error {
	return e.waitFor(ctx, loc, "toBeEnabled", func(st *chrome.ElementState) (bool, string) {
		switch {
		case st == nil:
			return false, "element not found"
		case !st.Enabled:
			return false, "element is disabled"
		}
		return true, ""
	})
}

// Disabled waits until the element exists and is disabled.
func (e *Expect) Disabled(ctx context.Context, loc *chrome.Locator) error {
	return e.waitFor(ctx, loc, "toBeDisabled", func(st *chrome.ElementState) (bool, string) {
		switch {
		case st == nil:
			return false, "element not found"
		case st.Enabled:
			return false, "element is enabled"
		}
		return true, ""
	})
}

// Value waits until the input's value equals want.
func (e *Expect) Value(ctx context.Context, loc *chrome.Locator, want string) error {
	return e.waitFor(ctx, loc, fmt.Sprintf("toHaveValue(%q)", want), func(st *chrome.ElementState) (bool, string) {
		switch {
		case st == nil:
			return false, "element not found"
		case st.Value == nil:
			return false, "element has no value"
		case *st.Value != want:
			return false, fmt.Sprintf("value is %q", *st.Value)
		}
		return true, ""
	})
}
