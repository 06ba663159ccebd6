package commands

import (
	"context"
	"sync"
	"time"

	"github.com/shipgl/vendor-bootstrap/internal/browser"
)

// lazyDriver defers launching the browser until a command actually drives
// the UI.
type lazyDriver struct {
	open func() (browser.Driver, error)

	once sync.Once
	d    browser.Driver
	err  error
}

func (l *lazyDriver) get() (browser.Driver, error) {
	l.once.Do(func() { l.d, l.err = l.open() })
	return l.d, l.err
}

func (l *lazyDriver) OpenPath(ctx context.Context, path string) error {
	d, err := l.get()
	if err != nil {
		return err
	}
	return d.OpenPath(ctx, path)
}

func (l *lazyDriver) TypeInto(ctx context.Context, locator, text string) error {
	d, err := l.get()
	if err != nil {
		return err
	}
	return d.TypeInto(ctx, locator, text)
}

func (l *lazyDriver) Click(ctx context.Context, locator string) error {
	d, err := l.get()
	if err != nil {
		return err
	}
	return d.Click(ctx, locator)
}

func (l *lazyDriver) CurrentLocation(ctx context.Context) (string, error) {
	d, err := l.get()
	if err != nil {
		return "", err
	}
	return d.CurrentLocation(ctx)
}

func (l *lazyDriver) WaitFor(ctx context.Context, locator string, timeout time.Duration) error {
	d, err := l.get()
	if err != nil {
		return err
	}
	return d.WaitFor(ctx, locator, timeout)
}

func (l *lazyDriver) WaitForLocation(ctx context.Context, timeout time.Duration, fragments ...string) (string, error) {
	d, err := l.get()
	if err != nil {
		return "", err
	}
	return d.WaitForLocation(ctx, timeout, fragments...)
}

func (l *lazyDriver) FindAll(ctx context.Context, locator string) ([]browser.Control, error) {
	d, err := l.get()
	if err != nil {
		return nil, err
	}
	return d.FindAll(ctx, locator)
}

func (l *lazyDriver) RunScript(ctx context.Context, script string, control browser.Control) error {
	d, err := l.get()
	if err != nil {
		return err
	}
	return d.RunScript(ctx, script, control)
}
