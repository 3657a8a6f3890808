package hubs

import (
	"time"

	"github.com/unihubs/campushub/backend/internal/profiles"
)

// Membership roles. Exactly one owner membership exists per hub, created
// together with the hub.
const (
	RoleMember = "member"
	RoleOwner  = "owner"
)

// Hub is a named community group. OwnerName is a snapshot copied at creation
// time and never refreshed when the owner later renames themselves.
type Hub struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name        string    `gorm:"column:name;size:190;not null" json:"name"`
	Description string    `gorm:"column:description;type:text;not null" json:"description"`
	Category    string    `gorm:"column:category;size:190;not null" json:"category"`
	OwnerID     string    `gorm:"column:owner_id;size:190;not null;index" json:"ownerId"`
	OwnerName   string    `gorm:"column:owner_name;size:190;not null" json:"ownerName"`
	MemberCount int64     `gorm:"column:member_count;not null;default:0" json:"memberCount"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index" json:"createdAt"`
}

// TableName exposes the collection backing hubs.
func (Hub) TableName() string {
	return "hubs"
}

// Membership links a user to a hub with a role. The unique index on
// (user_id, hub_id) turns the duplicate-join race into a storage-level
// conditional insert.
type Membership struct {
	ID       string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID   string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_memberships_user_hub,priority:1" json:"userId"`
	HubID    string    `gorm:"column:hub_id;size:190;not null;uniqueIndex:idx_memberships_user_hub,priority:2;index" json:"hubId"`
	Role     string    `gorm:"column:role;size:32;not null" json:"role"`
	JoinedAt time.Time `gorm:"column:joined_at;not null" json:"joinedAt"`
}

// TableName exposes the collection backing memberships.
func (Membership) TableName() string {
	return "memberships"
}

// Member is a membership joined to its user profile for the member list.
type Member struct {
	Membership Membership           `json:"membership"`
	Profile    profiles.UserProfile `json:"profile"`
}
