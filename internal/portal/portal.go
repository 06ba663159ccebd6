// Package portal names the vendor portal surfaces the bootstrap drives: paths,
// CSS locators and the URL fragments that identify where the browser landed.
package portal

import "strings"

const (
	SignupPath       = "/auth/signup"
	LoginPath        = "/auth/login"
	LogoutPath       = "/logout"
	VerifyMobilePath = "/verify-mobile"
	DashboardPath    = "/dashboard"
	OrdersPath       = "/orders"
)

// Signup form.
const (
	SignupFirstName       = "input[name='firstName']"
	SignupLastName        = "input[name='lastName']"
	SignupMobile          = "input[name='mobile']"
	SignupEmail           = "input[name='email']"
	SignupPassword        = "input[name='password']"
	SignupConfirmPassword = "input[name='confirmPassword']"
	SignupTerms           = "#toc"
	SignupSubmit          = "#sign_up_submit"
)

// Login form.
const (
	LoginEmail    = "input[name='email']"
	LoginPassword = "input[name='password']"
	LoginSubmit   = "#kt_sign_in_submit"
)

// Merchant agreement modal. The accept button carries no stable id, so it is
// picked among the submit buttons by label.
const (
	AgreementCandidates = "button[type='submit']"
	AgreementLabel      = "accept"
)

// ReadyFragments identify the authenticated area.
var ReadyFragments = []string{DashboardPath, OrdersPath}

// PostLoginFragments are every place a login submission can land.
var PostLoginFragments = []string{VerifyMobilePath, DashboardPath, OrdersPath}

// IsMobileVerification reports whether location is the OTP interstitial.
func IsMobileVerification(location string) bool {
	return strings.Contains(location, VerifyMobilePath)
}

// IsLogin reports whether location is the sign-in page.
func IsLogin(location string) bool {
	return strings.Contains(location, LoginPath)
}

// IsReady reports whether location is inside the authenticated area.
func IsReady(location string) bool {
	for _, f := range ReadyFragments {
		if strings.Contains(location, f) {
			return true
		}
	}
	return false
}

// IsAcceptLabel reports whether a control label reads as an acceptance affordance.
func IsAcceptLabel(label string) bool {
	return strings.Contains(strings.ToLower(label), AgreementLabel)
}
