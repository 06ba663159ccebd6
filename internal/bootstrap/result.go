package bootstrap

import "slices"

// Result is the outcome of one heavy setup attempt. It is built once and
// handed to the caller by value.
type Result struct {
	Email                     string        `json:"email"`
	Password                  string        `json:"password"`
	MobileVerified            bool          `json:"mobile_verified"`
	MerchantAgreementAccepted bool          `json:"merchant_agreement_accepted"`
	LoggedIn                  bool          `json:"logged_in"`
	Success                   bool          `json:"success"`
	Errors                    []string      `json:"errors"`
	State                     State         `json:"state"`
	Phases                    []PhaseResult `json:"phases"`
}

// run accumulates phase outcomes for a single SetupForOrders call.
type run struct {
	res     Result
	current Phase
}

func newRun(email, password string) *run {
	return &run{res: Result{
		Email:    email,
		Password: password,
		Errors:   []string{},
		State:    StateMobileUnverified,
		Phases:   []PhaseResult{},
	}}
}

func (r *run) record(pr PhaseResult) {
	r.res.Phases = append(r.res.Phases, pr)
	if !pr.OK && pr.Message != "" {
		r.res.Errors = append(r.res.Errors, pr.Message)
	}
	if pr.State != "" {
		r.res.State = pr.State
	}
}

func (r *run) fail(p Phase, msg string) {
	r.record(fatal(p, msg))
}

// finalize derives Success and detaches the slices from the run.
func (r *run) finalize() Result {
	res := r.res
	res.Success = res.MobileVerified && res.MerchantAgreementAccepted && res.LoggedIn && len(res.Errors) == 0
	if res.Success {
		res.State = StateReady
	} else {
		res.State = StateFailed
	}
	res.Errors = slices.Clone(res.Errors)
	res.Phases = slices.Clone(res.Phases)
	return res
}
