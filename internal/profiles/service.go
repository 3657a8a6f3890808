package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUID      = errors.New("user identifier is required")

	// ErrProfileNotFound indicates no profile exists for the requested uid.
	ErrProfileNotFound = errors.New("profiles: profile not found")
	// ErrProfileExists indicates a profile was already created for the uid.
	ErrProfileExists = errors.New("profiles: profile already exists")
)

const (
	opServiceNew = "profiles.service.new"
	opCreate     = "profiles.create"
	opGet        = "profiles.get"
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

// ServiceConfig describes the dependencies for profile management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages the users collection.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Create persists a new profile. The uid is the identity provider subject and
// must not already have a profile.
func (s *Service) Create(ctx context.Context, profile UserProfile) (UserProfile, error) {
	profile.UID = normalize(profile.UID)
	if profile.UID == "" {
		return UserProfile{}, newServiceError(opCreate, "missing_uid", errMissingUID)
	}

	var existing UserProfile
	err := s.db.WithContext(ctx).Where("uid = ?", profile.UID).Take(&existing).Error
	if err == nil {
		return UserProfile{}, fmt.Errorf("%w: %s", ErrProfileExists, profile.UID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("profile lookup failed", zap.String("operation", opCreate), zap.Error(err))
		return UserProfile{}, newServiceError(opCreate, "query_failed", err)
	}

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.clock().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		s.logger.Error("profile insert failed", zap.String("operation", opCreate), zap.String("uid", profile.UID), zap.Error(err))
		return UserProfile{}, newServiceError(opCreate, "insert_failed", err)
	}
	return profile, nil
}

// Get returns the profile for the given uid or ErrProfileNotFound.
func (s *Service) Get(ctx context.Context, uid string) (UserProfile, error) {
	uid = normalize(uid)
	if uid == "" {
		return UserProfile{}, newServiceError(opGet, "missing_uid", errMissingUID)
	}
	var profile UserProfile
	err := s.db.WithContext(ctx).Where("uid = ?", uid).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, uid)
	}
	if err != nil {
		s.logger.Error("profile lookup failed", zap.String("operation", opGet), zap.String("uid", uid), zap.Error(err))
		return UserProfile{}, newServiceError(opGet, "query_failed", err)
	}
	return profile, nil
}

// Exists reports whether a profile has been created for the uid, which is the
// signup-completed signal consumed by the access gate.
func (s *Service) Exists(ctx context.Context, uid string) (bool, error) {
	_, err := s.Get(ctx, uid)
	if errors.Is(err, ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
