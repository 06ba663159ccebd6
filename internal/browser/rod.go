package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser launch options and the per-action bounds.
type Config struct {
	BaseURL           string
	DebuggerURL       string
	Bin               string
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		ViewportWidth:     1440,
		ViewportHeight:    900,
		NavigationTimeout: 15 * time.Second,
		ActionTimeout:     8 * time.Second,
	}
}

// RodDriver implements Driver on a single Chrome tab through the DevTools protocol.
type RodDriver struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

// NewRodDriver creates a driver; Start must be called before use.
func NewRodDriver(cfg Config, logger *slog.Logger) *RodDriver {
	def := DefaultConfig()
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = def.ViewportWidth
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = def.NavigationTimeout
	}
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = def.ActionTimeout
	}
	return &RodDriver{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches one and opens a blank tab.
func (d *RodDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil {
		return nil
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(d.cfg.Headless)
		if d.cfg.Bin != "" {
			l = l.Bin(d.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.ViewportWidth,
		Height:            d.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		d.logger.Warn("set viewport", slog.Any("error", err))
	}

	d.browser = b
	d.page = page
	return nil
}

// Close shuts the tab and the browser.
func (d *RodDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	return err
}

// OpenPath navigates and waits for the load event.
func (d *RodDriver) OpenPath(ctx context.Context, path string) error {
	page, err := d.current(ctx, d.cfg.NavigationTimeout)
	if err != nil {
		return err
	}
	target := ResolveURL(d.cfg.BaseURL, path)
	d.logger.Debug("open url", slog.String("url", target))
	if err := page.Navigate(target); err != nil {
		return classify(fmt.Sprintf("navigate %s", target), err)
	}
	if err := page.WaitLoad(); err != nil {
		return classify(fmt.Sprintf("load %s", target), err)
	}
	return nil
}

// TypeInto replaces the value of the first element matching locator.
func (d *RodDriver) TypeInto(ctx context.Context, locator, text string) error {
	el, err := d.element(ctx, locator)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return classify("select "+locator, err)
	}
	if err := el.Input(text); err != nil {
		return classify("type into "+locator, err)
	}
	return nil
}

// Click clicks the first element matching locator.
func (d *RodDriver) Click(ctx context.Context, locator string) error {
	el, err := d.element(ctx, locator)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("click "+locator, err)
	}
	return nil
}

// CurrentLocation returns the tab URL.
func (d *RodDriver) CurrentLocation(ctx context.Context) (string, error) {
	page, err := d.current(ctx, d.cfg.ActionTimeout)
	if err != nil {
		return "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", classify("read location", err)
	}
	return info.URL, nil
}

// WaitFor blocks until an element matching locator exists.
func (d *RodDriver) WaitFor(ctx context.Context, locator string, timeout time.Duration) error {
	page, err := d.current(ctx, timeout)
	if err != nil {
		return err
	}
	if _, err := page.Element(locator); err != nil {
		return classify("wait for "+locator, err)
	}
	return nil
}

// WaitForLocation blocks until the URL contains one of fragments.
func (d *RodDriver) WaitForLocation(ctx context.Context, timeout time.Duration, fragments ...string) (string, error) {
	page, err := d.current(ctx, timeout)
	if err != nil {
		return "", err
	}
	js := `(frags) => frags.some((f) => window.location.href.includes(f))`
	if err := page.Wait(rod.Eval(js, fragments)); err != nil {
		return "", classify(fmt.Sprintf("wait for location %v", fragments), err)
	}
	return d.CurrentLocation(ctx)
}

// FindAll returns every element matching locator without waiting.
func (d *RodDriver) FindAll(ctx context.Context, locator string) ([]Control, error) {
	page, err := d.current(ctx, d.cfg.ActionTimeout)
	if err != nil {
		return nil, err
	}
	els, err := page.Elements(locator)
	if err != nil {
		return nil, classify("find "+locator, err)
	}
	controls := make([]Control, 0, len(els))
	for _, el := range els {
		label, err := el.Text()
		if err != nil {
			label = ""
		}
		controls = append(controls, &rodControl{el: el, label: strings.TrimSpace(label), timeout: d.cfg.ActionTimeout})
	}
	return controls, nil
}

// RunScript evaluates script with the control bound to `this`.
func (d *RodDriver) RunScript(ctx context.Context, script string, control Control) error {
	rc, ok := control.(*rodControl)
	if !ok {
		return fmt.Errorf("run script: control %T was not produced by this driver", control)
	}
	if _, err := rc.el.Context(ctx).Timeout(rc.timeout).Eval(script); err != nil {
		return classify("run script", err)
	}
	return nil
}

func (d *RodDriver) current(ctx context.Context, timeout time.Duration) (*rod.Page, error) {
	d.mu.Lock()
	page := d.page
	d.mu.Unlock()
	if page == nil {
		return nil, errors.New("browser not started")
	}
	return page.Context(ctx).Timeout(timeout), nil
}

func (d *RodDriver) element(ctx context.Context, locator string) (*rod.Element, error) {
	page, err := d.current(ctx, d.cfg.ActionTimeout)
	if err != nil {
		return nil, err
	}
	el, err := page.Element(locator)
	if err != nil {
		return nil, classify("find "+locator, err)
	}
	return el, nil
}

type rodControl struct {
	el      *rod.Element
	label   string
	timeout time.Duration
}

func (c *rodControl) Label() string { return c.label }

func (c *rodControl) Activate(ctx context.Context) error {
	if err := c.el.Context(ctx).Timeout(c.timeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("activate "+c.label, err)
	}
	return nil
}

// ResolveURL joins path onto base unless path is already absolute.
func ResolveURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func classify(action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", action, ErrUITimeout)
	}
	return fmt.Errorf("%s: %w", action, err)
}
