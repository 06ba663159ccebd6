package bootstrap

// State is a node of the bootstrap state machine.
type State string

const (
	StateNoSession        State = "NO_SESSION"
	StateReused           State = "REUSED"
	StateDone             State = "DONE"
	StateCreating         State = "CREATING"
	StateMobileUnverified State = "MOBILE_UNVERIFIED"
	StateMobileVerified   State = "MOBILE_VERIFIED"
	StateLoggedOut        State = "LOGGED_OUT"
	StateLoggingIn        State = "LOGGING_IN"
	StateAgreementPending State = "AGREEMENT_PENDING"
	StateReady            State = "READY"
	StateFailed           State = "FAILED"
)

// Phase names one step of the heavy setup path.
type Phase string

const (
	PhaseVerifyMobile      Phase = "verify_mobile"
	PhaseLogout            Phase = "logout"
	PhaseLogin             Phase = "login"
	PhaseAgreement         Phase = "merchant_agreement"
	PhaseAuthenticatedArea Phase = "authenticated_area"
)

// PhaseResult is the tagged outcome of one phase. A failed phase carries a
// message; a fatal one stops the sequence.
type PhaseResult struct {
	Phase   Phase  `json:"phase"`
	State   State  `json:"state"`
	OK      bool   `json:"ok"`
	Fatal   bool   `json:"fatal,omitempty"`
	Message string `json:"message,omitempty"`
}

func passed(p Phase, s State, msg string) PhaseResult {
	return PhaseResult{Phase: p, State: s, OK: true, Message: msg}
}

// recoverable failures are recorded and the sequence moves on.
func recoverable(p Phase, s State, msg string) PhaseResult {
	return PhaseResult{Phase: p, State: s, Message: msg}
}

func fatal(p Phase, msg string) PhaseResult {
	return PhaseResult{Phase: p, State: StateFailed, Fatal: true, Message: msg}
}
