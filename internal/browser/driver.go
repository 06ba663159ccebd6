// Package browser drives the vendor portal UI. Every wait is bounded; a
// bound that expires surfaces as ErrUITimeout rather than a hang.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrUITimeout means an expected element or navigation did not appear in time.
var ErrUITimeout = errors.New("ui wait timed out")

// ClickScript activates a control from page script, bypassing overlays that
// intercept pointer events.
const ClickScript = `() => this.click()`

// Control is an interactive element found on the current page.
type Control interface {
	Label() string
	Activate(ctx context.Context) error
}

// Driver is the browser capability the bootstrap orchestrator consumes.
type Driver interface {
	// OpenPath navigates to path, relative to the portal base URL unless absolute.
	OpenPath(ctx context.Context, path string) error
	TypeInto(ctx context.Context, locator, text string) error
	Click(ctx context.Context, locator string) error
	CurrentLocation(ctx context.Context) (string, error)
	WaitFor(ctx context.Context, locator string, timeout time.Duration) error
	// WaitForLocation blocks until the current URL contains one of fragments
	// and returns that URL.
	WaitForLocation(ctx context.Context, timeout time.Duration, fragments ...string) (string, error)
	FindAll(ctx context.Context, locator string) ([]Control, error)
	RunScript(ctx context.Context, script string, control Control) error
}

// IsTimeout reports whether err came from an expired bound.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrUITimeout) || errors.Is(err, context.DeadlineExceeded)
}
