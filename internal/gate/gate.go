package gate

// Level enumerates the access requirements a screen or mutation can demand.
type Level int

const (
	// LevelSignedIn requires an authenticated principal.
	LevelSignedIn Level = iota
	// LevelSignedUp additionally requires a completed signup profile.
	LevelSignedUp
	// LevelHubMember additionally requires a membership in the target hub.
	LevelHubMember
	// LevelHubOwner additionally requires the owner role on that membership.
	LevelHubOwner
)

// Decision is the gate outcome. Non-Allowed values are control decisions that
// map to a redirect, not errors.
type Decision int

const (
	Allowed Decision = iota
	RequiresLogin
	RequiresSignup
	RequiresMembership
	RequiresOwnership
)

// String returns the wire label for the decision.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RequiresLogin:
		return "requires_login"
	case RequiresSignup:
		return "requires_signup"
	case RequiresMembership:
		return "requires_membership"
	case RequiresOwnership:
		return "requires_ownership"
	default:
		return "unknown"
	}
}

// RoleOwner marks the single owner membership created with a hub.
const RoleOwner = "owner"

// Facts holds the three externally fetched inputs the gate decides over.
type Facts struct {
	PrincipalPresent bool
	ProfilePresent   bool
	MembershipRole   string // empty when no membership exists for the target hub
}

// Evaluate computes the access decision for the given facts and required level.
// It performs no I/O; callers fetch the facts and must consult the gate before
// any store write behind the gated operation.
func Evaluate(facts Facts, required Level) Decision {
	if !facts.PrincipalPresent {
		return RequiresLogin
	}
	if required == LevelSignedIn {
		return Allowed
	}
	if !facts.ProfilePresent {
		return RequiresSignup
	}
	if required == LevelSignedUp {
		return Allowed
	}
	if facts.MembershipRole == "" {
		return RequiresMembership
	}
	if required == LevelHubMember {
		return Allowed
	}
	if facts.MembershipRole != RoleOwner {
		return RequiresOwnership
	}
	return Allowed
}
