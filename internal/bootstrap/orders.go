package bootstrap

import (
	"context"
	"fmt"

	"github.com/shipgl/vendor-bootstrap/internal/browser"
	"github.com/shipgl/vendor-bootstrap/internal/portal"
)

type phaseFunc func(ctx context.Context, r *run) PhaseResult

type phaseStep struct {
	phase Phase
	fn    phaseFunc
}

// SetupForOrders brings the identity to a state where the orders module can
// run: mobile verified in the datastore, a fresh login, and the merchant
// agreement accepted. Every failure is folded into the Result.
func (o *Orchestrator) SetupForOrders(ctx context.Context, email, password string) (res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := newRun(email, password)
	defer func() {
		if p := recover(); p != nil {
			r.fail(r.current, fmt.Sprintf("orders setup aborted: %v", p))
			res = r.finalize()
		}
	}()

	steps := []phaseStep{
		{PhaseVerifyMobile, o.verifyMobile},
		{PhaseLogout, o.logout},
		{PhaseLogin, o.login},
		{PhaseAgreement, o.acceptAgreement},
		{PhaseAuthenticatedArea, o.enterAuthenticatedArea},
	}
	for _, step := range steps {
		r.current = step.phase
		pr := step.fn(ctx, r)
		r.record(pr)
		if pr.Fatal {
			break
		}
	}

	res = r.finalize()
	if res.Success {
		o.ready[email] = res
		o.logger.Info("orders setup complete", "email", email)
	} else {
		o.logger.Error("orders setup failed", "email", email, "errors", res.Errors)
	}
	return res
}

func (o *Orchestrator) verifyMobile(ctx context.Context, r *run) PhaseResult {
	if o.gateway == nil {
		return fatal(PhaseVerifyMobile, "mobile verification failed: no datastore configured")
	}
	msg, err := o.gateway.VerifyMobile(ctx, r.res.Email)
	if err != nil {
		return fatal(PhaseVerifyMobile, fmt.Sprintf("mobile verification failed: %v", err))
	}
	r.res.MobileVerified = true
	o.logger.Info("mobile verified in datastore", "email", r.res.Email)
	return passed(PhaseVerifyMobile, StateMobileVerified, msg)
}

// logout drops the session cached under the old verification flag.
func (o *Orchestrator) logout(ctx context.Context, r *run) PhaseResult {
	if err := o.driver.OpenPath(ctx, portal.LogoutPath); err != nil {
		o.logger.Warn("logout failed", "error", err)
		return recoverable(PhaseLogout, StateLoggedOut, fmt.Sprintf("logout: %v", err))
	}
	return passed(PhaseLogout, StateLoggedOut, "")
}

func (o *Orchestrator) login(ctx context.Context, r *run) PhaseResult {
	r.res.State = StateLoggingIn
	d := o.driver
	if err := d.OpenPath(ctx, portal.LoginPath); err != nil {
		return fatal(PhaseLogin, fmt.Sprintf("open login page: %v", err))
	}
	if err := d.WaitFor(ctx, portal.LoginEmail, o.opts.UIWait); err != nil {
		return fatal(PhaseLogin, fmt.Sprintf("login form: %v", err))
	}
	if err := d.TypeInto(ctx, portal.LoginEmail, r.res.Email); err != nil {
		return fatal(PhaseLogin, fmt.Sprintf("type email: %v", err))
	}
	if err := d.TypeInto(ctx, portal.LoginPassword, r.res.Password); err != nil {
		return fatal(PhaseLogin, fmt.Sprintf("type password: %v", err))
	}
	if err := d.Click(ctx, portal.LoginSubmit); err != nil {
		return fatal(PhaseLogin, fmt.Sprintf("submit login: %v", err))
	}

	location, err := o.settledLocation(ctx, portal.PostLoginFragments)
	if err != nil {
		return fatal(PhaseLogin, fmt.Sprintf("await login navigation: %v", err))
	}
	switch {
	case portal.IsMobileVerification(location):
		return fatal(PhaseLogin, "mobile verification page still appears after datastore update")
	case portal.IsLogin(location):
		// The sign-in button would pass for an agreement candidate.
		return fatal(PhaseLogin, fmt.Sprintf("login rejected, still on sign-in page: %s", location))
	}
	return passed(PhaseLogin, StateAgreementPending, location)
}

// settledLocation waits for one of fragments and falls back to wherever the
// browser is once the settle bound runs out. Driver faults are returned.
func (o *Orchestrator) settledLocation(ctx context.Context, fragments []string) (string, error) {
	location, err := o.driver.WaitForLocation(ctx, o.opts.SettleWait, fragments...)
	if err == nil {
		return location, nil
	}
	if !browser.IsTimeout(err) {
		return "", err
	}
	location, err = o.driver.CurrentLocation(ctx)
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

func (o *Orchestrator) acceptAgreement(ctx context.Context, r *run) PhaseResult {
	d := o.driver
	if err := d.WaitFor(ctx, portal.AgreementCandidates, o.opts.UIWait); err != nil {
		if browser.IsTimeout(err) {
			r.res.MerchantAgreementAccepted = true
			o.logger.Info("merchant agreement not presented")
			return passed(PhaseAgreement, StateAgreementPending, "not presented")
		}
		return recoverable(PhaseAgreement, StateAgreementPending, fmt.Sprintf("merchant agreement: %v", err))
	}

	controls, err := d.FindAll(ctx, portal.AgreementCandidates)
	if err != nil {
		return recoverable(PhaseAgreement, StateAgreementPending, fmt.Sprintf("merchant agreement: %v", err))
	}
	if len(controls) == 0 {
		r.res.MerchantAgreementAccepted = true
		return passed(PhaseAgreement, StateAgreementPending, "not presented")
	}

	var accept browser.Control
	for _, c := range controls {
		if portal.IsAcceptLabel(c.Label()) {
			accept = c
			break
		}
	}

	switch {
	case accept != nil:
		if err := d.RunScript(ctx, browser.ClickScript, accept); err != nil {
			return recoverable(PhaseAgreement, StateAgreementPending, fmt.Sprintf("accept merchant agreement: %v", err))
		}
	case o.opts.StrictAgreement:
		return recoverable(PhaseAgreement, StateAgreementPending,
			fmt.Sprintf("merchant agreement: no accept control among %d candidates", len(controls)))
	default:
		o.logger.Warn("no accept control found, activating first candidate", "label", controls[0].Label())
		if err := controls[0].Activate(ctx); err != nil {
			return recoverable(PhaseAgreement, StateAgreementPending, fmt.Sprintf("accept merchant agreement: %v", err))
		}
	}

	r.res.MerchantAgreementAccepted = true
	o.logger.Info("merchant agreement accepted", "email", r.res.Email)
	return passed(PhaseAgreement, StateAgreementPending, "accepted")
}

func (o *Orchestrator) enterAuthenticatedArea(ctx context.Context, r *run) PhaseResult {
	location, err := o.settledLocation(ctx, portal.ReadyFragments)
	if err != nil {
		return fatal(PhaseAuthenticatedArea, fmt.Sprintf("await authenticated area: %v", err))
	}
	if !portal.IsReady(location) {
		return recoverable(PhaseAuthenticatedArea, StateFailed, fmt.Sprintf("unexpected location after login: %s", location))
	}
	r.res.LoggedIn = true
	return passed(PhaseAuthenticatedArea, StateReady, location)
}
