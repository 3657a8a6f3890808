package hubs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/unihubs/campushub/backend/internal/ids"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingProfiles   = errors.New("profile service is required")

	// ErrHubNotFound indicates the hub does not exist.
	ErrHubNotFound = errors.New("hubs: hub not found")
	// ErrAlreadyMember indicates a membership already exists for (user, hub).
	ErrAlreadyMember = errors.New("hubs: already a member of this hub")
	// ErrNotMember indicates no membership exists for (user, hub).
	ErrNotMember = errors.New("hubs: not a member of this hub")
	// ErrOwnerCannotLeave indicates the owner attempted to leave instead of
	// deleting the hub.
	ErrOwnerCannotLeave = errors.New("hubs: the owner cannot leave; delete the hub instead")
	// ErrNotOwner indicates a privileged hub mutation by a non-owner.
	ErrNotOwner = errors.New("hubs: only the hub owner may do this")
	// ErrInvalidHubForm indicates a required hub field was left blank.
	ErrInvalidHubForm = errors.New("hubs: name, description and category are required")
)

const (
	opServiceNew = "hubs.service.new"
	opCreate     = "hubs.create"
	opJoin       = "hubs.join"
	opLeave      = "hubs.leave"
	opDelete     = "hubs.delete"
	opGet        = "hubs.get"
	opList       = "hubs.list"
	opMembership = "hubs.membership"
	opMembers    = "hubs.members"
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ServiceConfig describes the dependencies of the hub aggregate operations.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Profiles   *profiles.Service
	Logger     *zap.Logger
}

// Service implements the hub aggregate operations. Multi-record mutations run
// in a single transaction so the member counter cannot drift from the
// membership rows under partial failure.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	profiles   *profiles.Service
	logger     *zap.Logger
}

// NewService constructs the hub service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Profiles == nil {
		return nil, newServiceError(opServiceNew, "missing_profiles", errMissingProfiles)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		profiles:   cfg.Profiles,
		logger:     logger,
	}, nil
}

// CreateHub inserts the hub and its owner membership atomically. The owner
// name is snapshotted from the profile at write time.
func (s *Service) CreateHub(ctx context.Context, owner profiles.UserProfile, name, description, category string) (Hub, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	category = strings.TrimSpace(category)
	if name == "" || description == "" || category == "" {
		return Hub{}, ErrInvalidHubForm
	}

	hubID, err := s.idProvider.NewID()
	if err != nil {
		return Hub{}, newServiceError(opCreate, "id_generation_failed", err)
	}
	membershipID, err := s.idProvider.NewID()
	if err != nil {
		return Hub{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	hub := Hub{
		ID:          hubID,
		Name:        name,
		Description: description,
		Category:    category,
		OwnerID:     owner.UID,
		OwnerName:   owner.Nickname,
		MemberCount: 1,
		CreatedAt:   now,
	}
	membership := Membership{
		ID:       membershipID,
		UserID:   owner.UID,
		HubID:    hubID,
		Role:     RoleOwner,
		JoinedAt: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hub).Error; err != nil {
			return newServiceError(opCreate, "hub_insert_failed", err)
		}
		if err := tx.Create(&membership).Error; err != nil {
			return newServiceError(opCreate, "membership_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opCreate, txErr, zap.String("owner_id", owner.UID))
		return Hub{}, txErr
	}

	s.logger.Info("hub created", zap.String("hub_id", hubID), zap.String("owner_id", owner.UID))
	return hub, nil
}

// JoinHub inserts a member-role membership and increments the counter in one
// transaction. The existence check runs inside the transaction so the unique
// index is the final arbiter of the duplicate-join race.
func (s *Service) JoinHub(ctx context.Context, userID, hubID string) (Membership, error) {
	membershipID, err := s.idProvider.NewID()
	if err != nil {
		return Membership{}, newServiceError(opJoin, "id_generation_failed", err)
	}

	membership := Membership{
		ID:       membershipID,
		UserID:   userID,
		HubID:    hubID,
		Role:     RoleMember,
		JoinedAt: s.clock().UTC(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hub Hub
		if err := tx.Where("id = ?", hubID).Take(&hub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHubNotFound
			}
			return newServiceError(opJoin, "hub_select_failed", err)
		}

		var existing int64
		if err := tx.Model(&Membership{}).
			Where("user_id = ? AND hub_id = ?", userID, hubID).
			Count(&existing).Error; err != nil {
			return newServiceError(opJoin, "membership_select_failed", err)
		}
		if existing > 0 {
			return ErrAlreadyMember
		}

		if err := tx.Create(&membership).Error; err != nil {
			return newServiceError(opJoin, "membership_insert_failed", err)
		}
		if err := tx.Model(&Hub{}).Where("id = ?", hubID).
			UpdateColumn("member_count", gorm.Expr("member_count + ?", 1)).Error; err != nil {
			return newServiceError(opJoin, "counter_increment_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrHubNotFound) && !errors.Is(txErr, ErrAlreadyMember) {
			s.logError(opJoin, txErr, zap.String("user_id", userID), zap.String("hub_id", hubID))
		}
		return Membership{}, txErr
	}

	return membership, nil
}

// LeaveHub removes the caller's membership and decrements the counter. The
// owner membership is refused; owners delete the hub instead.
func (s *Service) LeaveHub(ctx context.Context, userID, hubID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership Membership
		err := tx.Where("user_id = ? AND hub_id = ?", userID, hubID).Take(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		if err != nil {
			return newServiceError(opLeave, "membership_select_failed", err)
		}
		if membership.Role == RoleOwner {
			return ErrOwnerCannotLeave
		}

		if err := tx.Delete(&Membership{}, "id = ?", membership.ID).Error; err != nil {
			return newServiceError(opLeave, "membership_delete_failed", err)
		}
		if err := tx.Model(&Hub{}).Where("id = ?", hubID).
			UpdateColumn("member_count", gorm.Expr("member_count - ?", 1)).Error; err != nil {
			return newServiceError(opLeave, "counter_decrement_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrNotMember) && !errors.Is(txErr, ErrOwnerCannotLeave) {
			s.logError(opLeave, txErr, zap.String("user_id", userID), zap.String("hub_id", hubID))
		}
		return txErr
	}
	return nil
}

// DeleteHub removes every membership and the hub itself in one transaction.
// Posts and comments referencing the hub are deliberately left in place.
func (s *Service) DeleteHub(ctx context.Context, userID, hubID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hub Hub
		err := tx.Where("id = ?", hubID).Take(&hub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHubNotFound
		}
		if err != nil {
			return newServiceError(opDelete, "hub_select_failed", err)
		}

		var membership Membership
		err = tx.Where("user_id = ? AND hub_id = ?", userID, hubID).Take(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && membership.Role != RoleOwner) {
			return ErrNotOwner
		}
		if err != nil {
			return newServiceError(opDelete, "membership_select_failed", err)
		}

		if err := tx.Delete(&Membership{}, "hub_id = ?", hubID).Error; err != nil {
			return newServiceError(opDelete, "membership_sweep_failed", err)
		}
		if err := tx.Delete(&Hub{}, "id = ?", hubID).Error; err != nil {
			return newServiceError(opDelete, "hub_delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrHubNotFound) && !errors.Is(txErr, ErrNotOwner) {
			s.logError(opDelete, txErr, zap.String("user_id", userID), zap.String("hub_id", hubID))
		}
		return txErr
	}

	s.logger.Info("hub deleted", zap.String("hub_id", hubID), zap.String("owner_id", userID))
	return nil
}

// GetHub returns a single hub or ErrHubNotFound.
func (s *Service) GetHub(ctx context.Context, hubID string) (Hub, error) {
	var hub Hub
	err := s.db.WithContext(ctx).Where("id = ?", hubID).Take(&hub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Hub{}, ErrHubNotFound
	}
	if err != nil {
		s.logError(opGet, err, zap.String("hub_id", hubID))
		return Hub{}, newServiceError(opGet, "query_failed", err)
	}
	return hub, nil
}

// ListHubs returns all hubs, newest first.
func (s *Service) ListHubs(ctx context.Context) ([]Hub, error) {
	var all []Hub
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&all).Error; err != nil {
		s.logError(opList, err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return all, nil
}

// Membership returns the caller's membership for the hub or ErrNotMember.
func (s *Service) Membership(ctx context.Context, userID, hubID string) (Membership, error) {
	var membership Membership
	err := s.db.WithContext(ctx).Where("user_id = ? AND hub_id = ?", userID, hubID).Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Membership{}, ErrNotMember
	}
	if err != nil {
		s.logError(opMembership, err, zap.String("user_id", userID), zap.String("hub_id", hubID))
		return Membership{}, newServiceError(opMembership, "query_failed", err)
	}
	return membership, nil
}

// ListMembers returns the hub's memberships joined to their profiles. Profile
// point reads fan out concurrently and join-wait; members whose profile read
// fails are dropped from the list rather than failing the whole call.
func (s *Service) ListMembers(ctx context.Context, hubID string) ([]Member, error) {
	var memberships []Membership
	if err := s.db.WithContext(ctx).Where("hub_id = ?", hubID).Find(&memberships).Error; err != nil {
		s.logError(opMembers, err, zap.String("hub_id", hubID))
		return nil, newServiceError(opMembers, "query_failed", err)
	}

	resolved := make([]*Member, len(memberships))
	var wg sync.WaitGroup
	for i, membership := range memberships {
		wg.Add(1)
		go func(slot int, m Membership) {
			defer wg.Done()
			profile, err := s.profiles.Get(ctx, m.UserID)
			if err != nil {
				s.logger.Debug("member profile lookup failed",
					zap.String("hub_id", hubID),
					zap.String("user_id", m.UserID),
					zap.Error(err))
				return
			}
			resolved[slot] = &Member{Membership: m, Profile: profile}
		}(i, membership)
	}
	wg.Wait()

	members := make([]Member, 0, len(resolved))
	for _, member := range resolved {
		if member != nil {
			members = append(members, *member)
		}
	}
	return members, nil
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	attrs := append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	s.logger.Error("hub service error", attrs...)
}
