package signup

import "time"

// Stash is the transient holding area bridging the two halves of the signup
// handshake. One row per principal, written by StartSignup and cleared by
// CompleteSignup. It is not the authoritative store; profiles are.
type Stash struct {
	UID            string    `gorm:"column:uid;primaryKey;size:190;not null"`
	PayloadJSON    string    `gorm:"column:payload_json;type:text;not null"`
	EmailForSignIn string    `gorm:"column:email_for_sign_in;size:320;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

// TableName exposes the table backing pending signups.
func (Stash) TableName() string {
	return "signup_stashes"
}

// stashPayload is the JSON shape persisted in Stash.PayloadJSON, mirroring
// the form fields plus the provider-sourced identity snapshot.
type stashPayload struct {
	Nickname      string `json:"nickname"`
	School        string `json:"school"`
	Major         string `json:"major"`
	ProviderEmail string `json:"providerEmail"`
	PhotoURL      string `json:"photoURL,omitempty"`
}
