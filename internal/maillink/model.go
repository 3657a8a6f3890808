package maillink

import "time"

// SignInLink is a single-use email sign-in link pending confirmation. A link
// proves control of its destination address when completed before expiry.
type SignInLink struct {
	Token      string     `gorm:"column:token;primaryKey;size:190;not null"`
	Address    string     `gorm:"column:address;size:320;not null;index"`
	Consumed   bool       `gorm:"column:consumed;not null;default:false"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
	ConsumedAt *time.Time `gorm:"column:consumed_at"`
}

// TableName exposes the table backing pending sign-in links.
func (SignInLink) TableName() string {
	return "signin_links"
}
