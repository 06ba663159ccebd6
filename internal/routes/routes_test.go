package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipgl/vendor-bootstrap/internal/auth"
	"github.com/shipgl/vendor-bootstrap/internal/config"
	"github.com/shipgl/vendor-bootstrap/internal/logging"
	"github.com/shipgl/vendor-bootstrap/internal/notification"
	"github.com/shipgl/vendor-bootstrap/internal/portal"
	"github.com/shipgl/vendor-bootstrap/internal/vendor"
)

type testPortal struct {
	app    *fiber.App
	repo   vendor.Repository
	otps   *notification.Recorder
	cookie string
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	p := &testPortal{app: fiber.New(), repo: vendor.NewMemoryRepository(), otps: &notification.Recorder{}}
	err := Setup(p.app, Deps{
		Cfg:      config.Config{AppEnv: "test", PortalSessionSecret: "secret"},
		Logger:   logging.Discard(),
		Notifier: p.otps,
		Vendors:  p.repo,
	})
	require.NoError(t, err)
	return p
}

// do sends a request carrying the current session cookie and keeps any cookie
// the response sets.
func (p *testPortal) do(t *testing.T, method, path string, form url.Values) *http.Response {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	}
	if p.cookie != "" {
		req.Header.Set(fiber.HeaderCookie, auth.CookieName+"="+p.cookie)
	}
	resp, err := p.app.Test(req)
	require.NoError(t, err)
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			p.cookie = c.Value
		}
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func signupForm(email string) url.Values {
	return url.Values{
		"firstName":       {"QA"},
		"lastName":        {"Vendor"},
		"mobile":          {"9876543210"},
		"email":           {email},
		"password":        {"Vendor@12345"},
		"confirmPassword": {"Vendor@12345"},
		"toc":             {"on"},
	}
}

func TestSignupFormHasBootstrapLocators(t *testing.T) {
	p := newTestPortal(t)
	body := readBody(t, p.do(t, fiber.MethodGet, portal.SignupPath, nil))
	for _, want := range []string{`name="firstName"`, `name="confirmPassword"`, `id="toc"`, `id="sign_up_submit"`} {
		assert.Contains(t, body, want)
	}
	body = readBody(t, p.do(t, fiber.MethodGet, portal.LoginPath, nil))
	assert.Contains(t, body, `id="kt_sign_in_submit"`)
}

func TestSignupVerifyAndAcceptAgreement(t *testing.T) {
	p := newTestPortal(t)
	email := "qa+1@example.com"

	resp := p.do(t, fiber.MethodPost, portal.SignupPath, signupForm(email))
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, portal.VerifyMobilePath, resp.Header.Get(fiber.HeaderLocation))
	require.NotEmpty(t, p.cookie)

	resp = p.do(t, fiber.MethodGet, portal.DashboardPath, nil)
	assert.Equal(t, portal.VerifyMobilePath, resp.Header.Get(fiber.HeaderLocation), "unverified vendors are held at the OTP page")

	resp = p.do(t, fiber.MethodPost, portal.VerifyMobilePath, url.Values{"otp": {"000000x"}})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	otp, ok := p.otps.Last(notification.KindMobileOTP, email)
	require.True(t, ok)
	resp = p.do(t, fiber.MethodPost, portal.VerifyMobilePath, url.Values{"otp": {otp.Body}})
	assert.Equal(t, portal.DashboardPath, resp.Header.Get(fiber.HeaderLocation))

	body := readBody(t, p.do(t, fiber.MethodGet, portal.OrdersPath, nil))
	assert.Contains(t, body, "I Accept")
	assert.Contains(t, body, `button type="submit"`)

	resp = p.do(t, fiber.MethodPost, "/agreement/accept", url.Values{"next": {portal.OrdersPath}})
	assert.Equal(t, portal.OrdersPath, resp.Header.Get(fiber.HeaderLocation))

	body = readBody(t, p.do(t, fiber.MethodGet, portal.OrdersPath, nil))
	assert.NotContains(t, body, `type="submit"`, "no submit controls once the agreement is accepted")
}

func TestLoginRoutesByVerificationFlag(t *testing.T) {
	p := newTestPortal(t)
	email := "qa+2@example.com"
	p.do(t, fiber.MethodPost, portal.SignupPath, signupForm(email))

	resp := p.do(t, fiber.MethodGet, portal.LogoutPath, nil)
	assert.Equal(t, portal.LoginPath, resp.Header.Get(fiber.HeaderLocation))
	p.cookie = ""

	login := url.Values{"email": {email}, "password": {"Vendor@12345"}}
	resp = p.do(t, fiber.MethodPost, portal.LoginPath, login)
	assert.Equal(t, portal.VerifyMobilePath, resp.Header.Get(fiber.HeaderLocation))

	v, err := p.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NoError(t, p.repo.SetMobileVerified(context.Background(), v.ID, true))

	p.cookie = ""
	resp = p.do(t, fiber.MethodPost, portal.LoginPath, login)
	assert.Equal(t, portal.DashboardPath, resp.Header.Get(fiber.HeaderLocation))

	resp = p.do(t, fiber.MethodPost, portal.LoginPath, url.Values{"email": {email}, "password": {"nope"}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSignedUpVendorSurvivesLaterRequests(t *testing.T) {
	p := newTestPortal(t)
	email := "qa+3@example.com"
	resp := p.do(t, fiber.MethodPost, portal.SignupPath, signupForm(email))
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)

	// Same-sized bodies land in the same request buffer.
	p.cookie = ""
	p.do(t, fiber.MethodPost, portal.SignupPath, signupForm("qa+4@example.com"))
	p.do(t, fiber.MethodPost, portal.LoginPath, url.Values{"email": {"zz+9@example.com"}, "password": {"Wrong@12345"}})

	v, err := p.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, email, v.Email)
	assert.Equal(t, "QA", v.FirstName)
	assert.Equal(t, "9876543210", v.Mobile)

	p.cookie = ""
	resp = p.do(t, fiber.MethodPost, portal.LoginPath, url.Values{"email": {email}, "password": {"Vendor@12345"}})
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, portal.VerifyMobilePath, resp.Header.Get(fiber.HeaderLocation))
}

func TestAuthenticatedAreaRequiresSession(t *testing.T) {
	p := newTestPortal(t)
	resp := p.do(t, fiber.MethodGet, portal.OrdersPath, nil)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, portal.LoginPath, resp.Header.Get(fiber.HeaderLocation))
}

func TestSignupValidationRerendersForm(t *testing.T) {
	p := newTestPortal(t)
	form := signupForm("qa@example.com")
	form.Del("toc")
	resp := p.do(t, fiber.MethodPost, portal.SignupPath, form)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "terms must be accepted")
	assert.Contains(t, body, `value="qa@example.com"`)
}

func TestHealthz(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	require.NoError(t, Setup(app, Deps{Cfg: config.Config{AppEnv: "test"}, Cache: cache, Logger: logging.Discard()}))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"redis":"ok"`)
	assert.Contains(t, body, `"postgres":"disabled"`)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "staging"}, Logger: logging.Discard()})
	require.ErrorContains(t, err, "database is required")
}
