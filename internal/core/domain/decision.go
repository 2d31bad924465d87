package domain

// Decision is the terminal state of an authorization check.
type Decision int

const (
	// DecisionDenied is the zero value so an unset decision never allows.
	DecisionDenied Decision = iota
	DecisionUnauthenticated
	DecisionAllowed
)

// String returns the decision name used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionUnauthenticated:
		return "unauthenticated"
	default:
		return "denied"
	}
}

// Reason explains which rule produced a decision.
type Reason string

const (
	ReasonNoSession      Reason = "no_session"
	ReasonInvalidSession Reason = "invalid_session"
	ReasonInvalidPath    Reason = "invalid_path"
	ReasonNoLocation     Reason = "no_location"
	ReasonOpenAccess     Reason = "open_access"
	ReasonAdmin          Reason = "admin"
	ReasonGranted        Reason = "granted"
	ReasonNotGranted     Reason = "not_granted"
	ReasonStoreError     Reason = "store_error"
)

// DecisionInput is everything Decide needs. It holds no handles to storage.
type DecisionInput struct {
	// User is the resolved session owner, nil when unauthenticated.
	User *User

	// Admin is true when the user is an admin, either by flag or by config.
	Admin bool

	// Matches are the matching locations, most specific first.
	Matches []*Location

	// Granted reports whether a permission exists for (Matches[0], User).
	Granted bool
}

// Result is a decision plus what it was about.
type Result struct {
	Decision Decision
	Reason   Reason
	User     *User
	Location *Location
}

// Decide applies the access rules to already-gathered state:
//
//  1. no user: UNAUTHENTICATED
//  2. no matching location: DENIED
//  3. winning location open to any authenticated user: ALLOWED
//  4. admin: ALLOWED
//  5. permission for (winner, user): ALLOWED, else DENIED
func Decide(in DecisionInput) Result {
	if in.User == nil {
		return Result{Decision: DecisionUnauthenticated, Reason: ReasonNoSession}
	}
	if len(in.Matches) == 0 {
		return Result{Decision: DecisionDenied, Reason: ReasonNoLocation, User: in.User}
	}

	winner := in.Matches[0]
	res := Result{User: in.User, Location: winner}
	switch {
	case winner.OpenAccess:
		res.Decision, res.Reason = DecisionAllowed, ReasonOpenAccess
	case in.Admin:
		res.Decision, res.Reason = DecisionAllowed, ReasonAdmin
	case in.Granted:
		res.Decision, res.Reason = DecisionAllowed, ReasonGranted
	default:
		res.Decision, res.Reason = DecisionDenied, ReasonNotGranted
	}
	return res
}

// Deny builds a DENIED result for failures outside the rules above.
func Deny(reason Reason, user *User) Result {
	return Result{Decision: DecisionDenied, Reason: reason, User: user}
}
