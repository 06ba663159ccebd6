// Package bootstrap provisions a usable vendor identity for an automated test
// run. Lightweight modules reuse or create an account; heavy modules also get
// the mobile verification bypass, a fresh login and the merchant agreement.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shipgl/vendor-bootstrap/internal/browser"
	"github.com/shipgl/vendor-bootstrap/internal/config"
	"github.com/shipgl/vendor-bootstrap/internal/credstore"
	"github.com/shipgl/vendor-bootstrap/internal/datastore"
	"github.com/shipgl/vendor-bootstrap/internal/portal"
)

// ErrEmptyModule is returned when a caller does not name its test module.
var ErrEmptyModule = errors.New("module name is required")

// Source tells where a credential pair came from.
type Source string

const (
	SourceCreated  Source = "created"
	SourceReused   Source = "reused"
	SourceSession  Source = "session"
	SourceSettings Source = "settings"
)

// Credentials is the email/password pair handed to a test module. State is
// where the lightweight path stopped: DONE for a reused identity,
// MOBILE_UNVERIFIED for a freshly created one.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Source   Source `json:"source"`
	State    State  `json:"state,omitempty"`
}

// Gateway is the slice of the vendor datastore the orchestrator needs.
type Gateway interface {
	VerifyMobile(ctx context.Context, email string) (string, error)
	ResetMobile(ctx context.Context, email string) (string, error)
	GetStatus(ctx context.Context, email string) (datastore.Status, error)
}

// Options tune the orchestrator.
type Options struct {
	FallbackEmail    string
	FallbackPassword string
	Signup           config.SignupProfile
	UIWait           time.Duration
	SettleWait       time.Duration
	HeavyModules     []string
	StrictAgreement  bool
	// NewEmail generates the address for a freshly created account. Defaults
	// to a uuid tag inserted into FallbackEmail.
	NewEmail func() string
}

// OptionsFromConfig maps runtime configuration onto orchestrator options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		FallbackEmail:    cfg.ValidEmail,
		FallbackPassword: cfg.ValidPassword,
		Signup:           cfg.Signup,
		UIWait:           cfg.Browser.UIWait,
		SettleWait:       cfg.Browser.SettleWait,
		HeavyModules:     cfg.HeavyModules,
		StrictAgreement:  cfg.AgreementStrict,
	}
}

// Orchestrator sequences the credential store, the datastore gateway and the
// browser driver. Calls are serialized; a single driver is never shared
// between concurrent phases.
type Orchestrator struct {
	store   credstore.Store
	gateway Gateway
	driver  browser.Driver
	opts    Options
	logger  *slog.Logger

	mu    sync.Mutex
	ready map[string]Result
}

// New wires an orchestrator. gateway may be nil for runs that never take the
// heavy path.
func New(store credstore.Store, gateway Gateway, driver browser.Driver, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.UIWait <= 0 {
		opts.UIWait = 8 * time.Second
	}
	if opts.SettleWait <= 0 {
		opts.SettleWait = 4 * time.Second
	}
	if opts.NewEmail == nil {
		base := opts.FallbackEmail
		opts.NewEmail = func() string {
			return TaggedEmail(base, uuid.NewString()[:8])
		}
	}
	return &Orchestrator{
		store:   store,
		gateway: gateway,
		driver:  driver,
		opts:    opts,
		logger:  logger,
		ready:   make(map[string]Result),
	}
}

// TaggedEmail inserts a "+tag" suffix into the local part of base.
func TaggedEmail(base, tag string) string {
	local, domain, ok := strings.Cut(base, "@")
	if !ok || local == "" || domain == "" {
		return fmt.Sprintf("qa.vendor+%s@example.com", tag)
	}
	if i := strings.IndexByte(local, '+'); i >= 0 {
		local = local[:i]
	}
	return fmt.Sprintf("%s+%s@%s", local, tag, domain)
}

// BootstrapForModule returns credentials for module, reusing the persisted
// identity when one exists and signing up a new vendor otherwise.
func (o *Orchestrator) BootstrapForModule(ctx context.Context, module string) (Credentials, error) {
	module = strings.TrimSpace(module)
	if module == "" {
		return Credentials{}, ErrEmptyModule
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	existing, err := o.store.Get(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("load session: %w", err)
	}
	if existing != nil {
		o.transition(module, StateNoSession, StateReused)
		if err := o.store.RecordUsage(ctx, module); err != nil {
			return Credentials{}, fmt.Errorf("record usage for %s: %w", module, err)
		}
		o.transition(module, StateReused, StateDone)
		o.logger.Info("reusing session account", "module", module, "email", existing.Email)
		return Credentials{Email: existing.Email, Password: existing.Password, Source: SourceReused, State: StateDone}, nil
	}

	email := o.opts.NewEmail()
	password := o.opts.FallbackPassword
	o.transition(module, StateNoSession, StateCreating)
	o.logger.Info("no session found, creating account", "module", module, "email", email)

	if err := o.signup(ctx, email, password); err != nil {
		return Credentials{}, fmt.Errorf("create account %s: %w", email, err)
	}
	if _, err := o.store.Save(ctx, email, password, credstore.OriginCreated, module); err != nil {
		return Credentials{}, fmt.Errorf("save session: %w", err)
	}
	o.transition(module, StateCreating, StateMobileUnverified)
	o.logger.Info("account created", "module", module, "email", email)
	return Credentials{Email: email, Password: password, Source: SourceCreated, State: StateMobileUnverified}, nil
}

func (o *Orchestrator) transition(module string, from, to State) {
	o.logger.Debug("bootstrap state", "module", module, "from", from, "to", to)
}

func (o *Orchestrator) signup(ctx context.Context, email, password string) error {
	d := o.driver
	if err := d.OpenPath(ctx, portal.SignupPath); err != nil {
		return fmt.Errorf("open signup: %w", err)
	}
	if err := d.WaitFor(ctx, portal.SignupEmail, o.opts.UIWait); err != nil {
		return fmt.Errorf("signup form: %w", err)
	}

	fields := []struct{ locator, value string }{
		{portal.SignupFirstName, o.opts.Signup.FirstName},
		{portal.SignupLastName, o.opts.Signup.LastName},
		{portal.SignupMobile, o.opts.Signup.Mobile},
		{portal.SignupEmail, email},
		{portal.SignupPassword, password},
		{portal.SignupConfirmPassword, password},
	}
	for _, f := range fields {
		if err := d.TypeInto(ctx, f.locator, f.value); err != nil {
			return fmt.Errorf("fill %s: %w", f.locator, err)
		}
	}
	if err := d.Click(ctx, portal.SignupTerms); err != nil {
		return fmt.Errorf("accept terms: %w", err)
	}
	if err := d.Click(ctx, portal.SignupSubmit); err != nil {
		return fmt.Errorf("submit signup: %w", err)
	}
	if _, err := d.WaitForLocation(ctx, o.opts.UIWait, portal.VerifyMobilePath); err != nil {
		return fmt.Errorf("await mobile verification page: %w", err)
	}
	return nil
}

// GetCredentials reports the credentials a test should use without creating
// anything: the persisted identity if present, otherwise the configured pair.
func (o *Orchestrator) GetCredentials(ctx context.Context) Credentials {
	id, err := o.store.Get(ctx)
	if err != nil {
		o.logger.Warn("session store unavailable, using configured credentials", "error", err)
	}
	if id != nil {
		return Credentials{Email: id.Email, Password: id.Password, Source: SourceSession}
	}
	return Credentials{Email: o.opts.FallbackEmail, Password: o.opts.FallbackPassword, Source: SourceSettings}
}

// IsHeavyModule reports whether module needs the full setup.
func (o *Orchestrator) IsHeavyModule(module string) bool {
	for _, m := range o.opts.HeavyModules {
		if strings.EqualFold(m, module) {
			return true
		}
	}
	return false
}

// PrepareModule runs the lightweight path and, for heavy modules, the full
// setup once per identity per process. The Result is nil for lightweight
// modules.
func (o *Orchestrator) PrepareModule(ctx context.Context, module string) (Credentials, *Result, error) {
	creds, err := o.BootstrapForModule(ctx, module)
	if err != nil {
		return Credentials{}, nil, err
	}
	if !o.IsHeavyModule(module) {
		return creds, nil, nil
	}

	o.mu.Lock()
	prev, done := o.ready[creds.Email]
	o.mu.Unlock()
	if done {
		o.logger.Debug("identity already set up in this process", "module", module, "email", creds.Email)
		return creds, &prev, nil
	}

	res := o.SetupForOrders(ctx, creds.Email, creds.Password)
	return creds, &res, nil
}

// CheckMobileStatus reads the verification flag for email.
func (o *Orchestrator) CheckMobileStatus(ctx context.Context, email string) (datastore.Status, error) {
	if o.gateway == nil {
		return datastore.Status{}, fmt.Errorf("check mobile status: %w", datastore.ErrConnectionLost)
	}
	return o.gateway.GetStatus(ctx, email)
}

// CleanupMobileVerification puts email back into the unverified state so the
// next run exercises the bypass again.
func (o *Orchestrator) CleanupMobileVerification(ctx context.Context, email string) (string, error) {
	if o.gateway == nil {
		return "", fmt.Errorf("reset mobile verification: %w", datastore.ErrConnectionLost)
	}
	return o.gateway.ResetMobile(ctx, email)
}
