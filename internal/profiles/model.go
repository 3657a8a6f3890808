package profiles

import (
	"strings"
	"time"
)

// UserProfile is the application-level user record created exactly once, at
// signup completion. Its existence for a given provider uid is the sole
// signal that signup has completed.
type UserProfile struct {
	UID         string    `gorm:"column:uid;primaryKey;size:190;not null" json:"uid"`
	Email       string    `gorm:"column:email;size:320;not null" json:"email"`
	SchoolEmail string    `gorm:"column:school_email;size:320" json:"schoolEmail,omitempty"`
	Nickname    string    `gorm:"column:nickname;size:190;not null" json:"nickname"`
	School      string    `gorm:"column:school;size:190;not null" json:"school"`
	Major       string    `gorm:"column:major;size:190;not null" json:"major"`
	PhotoURL    string    `gorm:"column:photo_url;size:512" json:"photoURL,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName exposes the collection backing user profiles.
func (UserProfile) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
