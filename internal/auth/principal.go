package auth

import "strings"

// Principal is the authenticated identity returned by the identity provider.
// UID is the provider subject and is stable across sign-ins.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Present reports whether the principal carries an authenticated subject.
func (p Principal) Present() bool {
	return strings.TrimSpace(p.UID) != ""
}
