package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shipgl/vendor-bootstrap/internal/browser"
	"github.com/shipgl/vendor-bootstrap/internal/datastore"
	"github.com/shipgl/vendor-bootstrap/internal/portal"
)

const fakeBase = "https://portal.test"

// fakeDriver simulates the portal: navigation lands on the requested path
// unless a redirect is registered, and clicks may move the browser.
type fakeDriver struct {
	mu sync.Mutex

	calls    []string
	typed    map[string]string
	location string

	redirects  map[string]string // path -> landing path
	afterClick map[string]string // locator -> landing path
	present    map[string]bool
	controls   []*fakeControl
	failOpen   map[string]error
	failClick  map[string]error
	failAwait  map[string]error // joined fragments -> error
	panicClick map[string]any
	scripts    int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		typed:      map[string]string{},
		redirects:  map[string]string{},
		afterClick: map[string]string{},
		present:    map[string]bool{},
		failOpen:   map[string]error{},
		failClick:  map[string]error{},
		failAwait:  map[string]error{},
		panicClick: map[string]any{},
	}
}

// happyPortal is a portal where login lands on the dashboard and an accept
// button dismisses the agreement.
func happyPortal() *fakeDriver {
	d := newFakeDriver()
	d.redirects[portal.LogoutPath] = portal.LoginPath
	d.present[portal.LoginEmail] = true
	d.present[portal.SignupEmail] = true
	d.afterClick[portal.LoginSubmit] = portal.DashboardPath
	d.afterClick[portal.SignupSubmit] = portal.VerifyMobilePath
	d.present[portal.AgreementCandidates] = true
	d.controls = []*fakeControl{
		{label: "Decline", next: portal.LoginPath},
		{label: "I Accept", next: portal.DashboardPath},
	}
	return d
}

func (d *fakeDriver) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDriver) OpenPath(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("open %s", path)
	if err := d.failOpen[path]; err != nil {
		return err
	}
	if to, ok := d.redirects[path]; ok {
		path = to
	}
	d.location = fakeBase + path
	return nil
}

func (d *fakeDriver) TypeInto(_ context.Context, locator, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("type %s", locator)
	d.typed[locator] = text
	return nil
}

func (d *fakeDriver) Click(_ context.Context, locator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("click %s", locator)
	if p, ok := d.panicClick[locator]; ok {
		panic(p)
	}
	if err := d.failClick[locator]; err != nil {
		return err
	}
	if to, ok := d.afterClick[locator]; ok {
		d.location = fakeBase + to
	}
	return nil
}

func (d *fakeDriver) CurrentLocation(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("location")
	return d.location, nil
}

func (d *fakeDriver) WaitFor(_ context.Context, locator string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("wait %s", locator)
	if !d.present[locator] {
		return fmt.Errorf("wait for %s: %w", locator, browser.ErrUITimeout)
	}
	return nil
}

func (d *fakeDriver) WaitForLocation(_ context.Context, _ time.Duration, fragments ...string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.Join(fragments, ",")
	d.record("await %s", key)
	if err := d.failAwait[key]; err != nil {
		return "", err
	}
	for _, f := range fragments {
		if strings.Contains(d.location, f) {
			return d.location, nil
		}
	}
	return "", fmt.Errorf("navigation to %v: %w", fragments, browser.ErrUITimeout)
}

func (d *fakeDriver) FindAll(_ context.Context, locator string) ([]browser.Control, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("find %s", locator)
	out := make([]browser.Control, 0, len(d.controls))
	for _, c := range d.controls {
		c.driver = d
		out = append(out, c)
	}
	return out, nil
}

func (d *fakeDriver) RunScript(_ context.Context, script string, control browser.Control) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("script %s", control.Label())
	d.scripts++
	c, ok := control.(*fakeControl)
	if !ok {
		return fmt.Errorf("unexpected control %T", control)
	}
	c.activateLocked()
	return nil
}

type fakeControl struct {
	label     string
	next      string
	err       error
	activated bool
	driver    *fakeDriver
}

func (c *fakeControl) Label() string { return c.label }

func (c *fakeControl) Activate(context.Context) error {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()
	c.driver.record("activate %s", c.label)
	if c.err != nil {
		return c.err
	}
	c.activateLocked()
	return nil
}

func (c *fakeControl) activateLocked() {
	c.activated = true
	if c.next != "" {
		c.driver.location = fakeBase + c.next
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	flags    map[string]datastore.Flag
	err      error
	verifies int
	resets   int
}

func newFakeGateway(emails ...string) *fakeGateway {
	g := &fakeGateway{flags: map[string]datastore.Flag{}}
	for _, e := range emails {
		g.flags[e] = datastore.FlagUnverified
	}
	return g
}

func (g *fakeGateway) set(email string, want datastore.Flag) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if _, ok := g.flags[email]; !ok {
		return "", fmt.Errorf("%s: %w", email, datastore.ErrNotFound)
	}
	g.flags[email] = want
	return fmt.Sprintf("mobile_verified=%d for %s", want, email), nil
}

func (g *fakeGateway) VerifyMobile(_ context.Context, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies++
	return g.set(email, datastore.FlagVerified)
}

func (g *fakeGateway) ResetMobile(_ context.Context, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets++
	return g.set(email, datastore.FlagUnverified)
}

func (g *fakeGateway) GetStatus(_ context.Context, email string) (datastore.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return datastore.Status{}, g.err
	}
	f, ok := g.flags[email]
	if !ok {
		return datastore.Status{MobileVerified: datastore.FlagUnknown}, nil
	}
	return datastore.Status{Exists: true, MobileVerified: f}, nil
}
