package hubs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/unihubs/campushub/backend/internal/ids"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	service  *Service
	profiles *profiles.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sqlite pool: %v", err)
	}
	// A second pool connection would see its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Hub{}, &Membership{}, &profiles.UserProfile{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	clock := func() time.Time { return time.Unix(1700000000, 0).UTC() }

	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create profile service: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: ids.NewUUIDProvider(),
		Profiles:   profileService,
	})
	if err != nil {
		t.Fatalf("failed to create hub service: %v", err)
	}
	return &fixture{db: db, service: service, profiles: profileService}
}

func (f *fixture) mustProfile(t *testing.T, uid, nickname string) profiles.UserProfile {
	t.Helper()
	profile, err := f.profiles.Create(context.Background(), profiles.UserProfile{
		UID:      uid,
		Email:    fmt.Sprintf("%s@gmail.com", uid),
		Nickname: nickname,
		School:   "한국대학교",
		Major:    "컴퓨터공학과",
	})
	if err != nil {
		t.Fatalf("failed to create profile %s: %v", uid, err)
	}
	return profile
}

func (f *fixture) mustHub(t *testing.T, owner profiles.UserProfile) Hub {
	t.Helper()
	hub, err := f.service.CreateHub(context.Background(), owner, "Algo Study", "알고리즘 스터디", "스터디")
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	return hub
}

func (f *fixture) memberCount(t *testing.T, hubID string) int64 {
	t.Helper()
	hub, err := f.service.GetHub(context.Background(), hubID)
	if err != nil {
		t.Fatalf("failed to fetch hub: %v", err)
	}
	return hub.MemberCount
}

func TestCreateHubSeedsOwnerMembership(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")

	hub := f.mustHub(t, owner)

	if hub.MemberCount != 1 {
		t.Fatalf("expected memberCount 1, got %d", hub.MemberCount)
	}
	if hub.OwnerName != "hubmaster" {
		t.Fatalf("expected owner name snapshot, got %q", hub.OwnerName)
	}

	membership, err := f.service.Membership(context.Background(), owner.UID, hub.ID)
	if err != nil {
		t.Fatalf("owner membership lookup failed: %v", err)
	}
	if membership.Role != RoleOwner {
		t.Fatalf("expected owner role, got %q", membership.Role)
	}
}

func TestCreateHubValidatesForm(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	if _, err := f.service.CreateHub(context.Background(), owner, "  ", "desc", "cat"); !errors.Is(err, ErrInvalidHubForm) {
		t.Fatalf("expected ErrInvalidHubForm, got %v", err)
	}
}

func TestJoinThenLeaveRestoresCounter(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	member := f.mustProfile(t, "member-1", "joiner")
	hub := f.mustHub(t, owner)

	if _, err := f.service.JoinHub(context.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if got := f.memberCount(t, hub.ID); got != 2 {
		t.Fatalf("expected memberCount 2 after join, got %d", got)
	}

	if err := f.service.LeaveHub(context.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if got := f.memberCount(t, hub.ID); got != 1 {
		t.Fatalf("expected memberCount 1 after leave, got %d", got)
	}

	var nonOwner int64
	if err := f.db.Model(&Membership{}).Where("hub_id = ? AND role = ?", hub.ID, RoleMember).Count(&nonOwner).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if nonOwner != 0 {
		t.Fatalf("expected zero non-owner memberships, got %d", nonOwner)
	}
}

func TestJoinHubRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	member := f.mustProfile(t, "member-1", "joiner")
	hub := f.mustHub(t, owner)

	if _, err := f.service.JoinHub(context.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := f.service.JoinHub(context.Background(), member.UID, hub.ID); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if got := f.memberCount(t, hub.ID); got != 2 {
		t.Fatalf("duplicate join must not double-increment, got %d", got)
	}
}

func TestJoinHubUnknownHub(t *testing.T) {
	f := newFixture(t)
	member := f.mustProfile(t, "member-1", "joiner")
	if _, err := f.service.JoinHub(context.Background(), member.UID, "missing"); !errors.Is(err, ErrHubNotFound) {
		t.Fatalf("expected ErrHubNotFound, got %v", err)
	}
}

func TestLeaveHubGuardsOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	hub := f.mustHub(t, owner)

	if err := f.service.LeaveHub(context.Background(), owner.UID, hub.ID); !errors.Is(err, ErrOwnerCannotLeave) {
		t.Fatalf("expected ErrOwnerCannotLeave, got %v", err)
	}

	// Membership and counter must be untouched.
	if _, err := f.service.Membership(context.Background(), owner.UID, hub.ID); err != nil {
		t.Fatalf("owner membership must survive: %v", err)
	}
	if got := f.memberCount(t, hub.ID); got != 1 {
		t.Fatalf("counter must stay at 1, got %d", got)
	}
}

func TestLeaveHubWithoutMembership(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	outsider := f.mustProfile(t, "outsider-1", "passerby")
	hub := f.mustHub(t, owner)

	if err := f.service.LeaveHub(context.Background(), outsider.UID, hub.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestDeleteHubSweepsMemberships(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	member := f.mustProfile(t, "member-1", "joiner")
	hub := f.mustHub(t, owner)
	if _, err := f.service.JoinHub(context.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	if err := f.service.DeleteHub(context.Background(), member.UID, hub.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for non-owner delete, got %v", err)
	}

	if err := f.service.DeleteHub(context.Background(), owner.UID, hub.ID); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}

	if _, err := f.service.GetHub(context.Background(), hub.ID); !errors.Is(err, ErrHubNotFound) {
		t.Fatalf("expected hub to be gone, got %v", err)
	}
	var remaining int64
	if err := f.db.Model(&Membership{}).Where("hub_id = ?", hub.ID).Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all memberships removed, got %d", remaining)
	}
}

func TestListHubsNewestFirst(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")

	base := time.Unix(1700000000, 0).UTC()
	ticks := 0
	f.service.clock = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Minute)
	}

	first, err := f.service.CreateHub(context.Background(), owner, "First", "d", "c")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := f.service.CreateHub(context.Background(), owner, "Second", "d", "c")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	all, err := f.service.ListHubs(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 hubs, got %d", len(all))
	}
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("expected newest-first ordering, got %q then %q", all[0].Name, all[1].Name)
	}
}

func TestListMembersDropsMissingProfiles(t *testing.T) {
	f := newFixture(t)
	owner := f.mustProfile(t, "owner-1", "hubmaster")
	member := f.mustProfile(t, "member-1", "joiner")
	hub := f.mustHub(t, owner)
	if _, err := f.service.JoinHub(context.Background(), member.UID, hub.ID); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// Remove the joiner's profile out from under the membership.
	if err := f.db.Delete(&profiles.UserProfile{}, "uid = ?", member.UID).Error; err != nil {
		t.Fatalf("profile delete failed: %v", err)
	}

	members, err := f.service.ListMembers(context.Background(), hub.ID)
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected missing-profile member to be dropped, got %d members", len(members))
	}
	if members[0].Profile.UID != owner.UID {
		t.Fatalf("unexpected surviving member %q", members[0].Profile.UID)
	}
}
