package signup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unihubs/campushub/backend/internal/auth"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSchoolEmailSuffix = ".ac.kr"

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingChannel  = errors.New("mail link channel is required")
	errMissingProfiles = errors.New("profile service is required")
	errMissingBaseURL  = errors.New("callback base url is required")

	// ErrUnauthenticated indicates no authenticated principal is present.
	ErrUnauthenticated = errors.New("signup: authentication required")
	// ErrIncompleteForm indicates a required form field was left blank.
	ErrIncompleteForm = errors.New("signup: nickname, school and major are required")
	// ErrInvalidSchoolEmail indicates the address does not match the
	// institutional domain pattern.
	ErrInvalidSchoolEmail = errors.New("signup: school email must belong to an institutional domain")
	// ErrEmailDispatchFailed indicates the verification link could not be sent.
	ErrEmailDispatchFailed = errors.New("signup: verification email dispatch failed")
	// ErrInvalidVerificationLink indicates the callback URL is not a pending link.
	ErrInvalidVerificationLink = errors.New("signup: invalid verification link")
	// ErrEmailRequired indicates no destination address could be recovered and
	// none was supplied.
	ErrEmailRequired = errors.New("signup: email address required to complete verification")
	// ErrVerificationExchangeFailed indicates the channel rejected the exchange.
	ErrVerificationExchangeFailed = errors.New("signup: verification exchange failed")
	// ErrStashMissing indicates the pending-signup stash expired or was cleared.
	ErrStashMissing = errors.New("signup: pending signup data not found")
)

// LinkChannel is the email verification collaborator. *maillink.Service
// satisfies it.
type LinkChannel interface {
	SendLink(ctx context.Context, address, callbackBaseURL string) error
	IsValidLink(rawURL string) bool
	CompleteLink(ctx context.Context, address, rawURL string) (string, error)
}

// Form carries the fields submitted on the signup screen.
type Form struct {
	Nickname    string
	School      string
	Major       string
	SchoolEmail string
}

// ServiceConfig describes the dependencies of the signup state machine.
type ServiceConfig struct {
	Database          *gorm.DB
	Channel           LinkChannel
	Profiles          *profiles.Service
	CallbackBaseURL   string
	SchoolEmailSuffix string
	Clock             func() time.Time
	Logger            *zap.Logger
}

// Service drives a freshly authenticated principal through school-email
// verification to a provisioned profile.
type Service struct {
	db          *gorm.DB
	channel     LinkChannel
	profiles    *profiles.Service
	callbackURL string
	suffix      string
	clock       func() time.Time
	logger      *zap.Logger
}

// NewService constructs the signup service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Channel == nil {
		return nil, errMissingChannel
	}
	if cfg.Profiles == nil {
		return nil, errMissingProfiles
	}
	base := strings.TrimSpace(cfg.CallbackBaseURL)
	if base == "" {
		return nil, errMissingBaseURL
	}
	suffix := strings.ToLower(strings.TrimSpace(cfg.SchoolEmailSuffix))
	if suffix == "" {
		suffix = defaultSchoolEmailSuffix
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
		db:          cfg.Database,
		channel:     cfg.Channel,
		profiles:    cfg.Profiles,
		callbackURL: base,
		suffix:      suffix,
		clock:       clock,
		logger:      logger,
	}, nil
}

// StartSignup stashes the submitted form and dispatches the verification link
// to the school address. The principal stays in the EmailPending state until
// the link comes back through CompleteSignup.
func (s *Service) StartSignup(ctx context.Context, principal auth.Principal, form Form) error {
	if !principal.Present() {
		return ErrUnauthenticated
	}

	nickname := strings.TrimSpace(form.Nickname)
	school := strings.TrimSpace(form.School)
	major := strings.TrimSpace(form.Major)
	if nickname == "" || school == "" || major == "" {
		return ErrIncompleteForm
	}

	schoolEmail, err := s.validateSchoolEmail(form.SchoolEmail)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(stashPayload{
		Nickname:      nickname,
		School:        school,
		Major:         major,
		ProviderEmail: principal.Email,
		PhotoURL:      principal.PhotoURL,
	})
	if err != nil {
		return err
	}

	stash := Stash{
		UID:            principal.UID,
		PayloadJSON:    string(payload),
		EmailForSignIn: schoolEmail,
		CreatedAt:      s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&stash).Error; err != nil {
		s.logger.Error("signup stash write failed", zap.String("uid", principal.UID), zap.Error(err))
		return err
	}

	if err := s.channel.SendLink(ctx, schoolEmail, s.callbackURL); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDispatchFailed, err)
	}

	s.logger.Info("signup started",
		zap.String("uid", principal.UID),
		zap.String("school_email", schoolEmail))
	return nil
}

// CompleteSignup finishes the handshake using the stashed destination address.
func (s *Service) CompleteSignup(ctx context.Context, principal auth.Principal, callbackURL string) (profiles.UserProfile, error) {
	return s.complete(ctx, principal, callbackURL, "")
}

// CompleteSignupWithEmail finishes the handshake with an explicitly supplied
// address, used when the stash was lost (for example, the link was opened on
// another device) and the user re-entered the address.
func (s *Service) CompleteSignupWithEmail(ctx context.Context, principal auth.Principal, callbackURL, address string) (profiles.UserProfile, error) {
	return s.complete(ctx, principal, callbackURL, address)
}

func (s *Service) complete(ctx context.Context, principal auth.Principal, callbackURL, explicitAddress string) (profiles.UserProfile, error) {
	if !principal.Present() {
		return profiles.UserProfile{}, ErrUnauthenticated
	}
	if !s.channel.IsValidLink(callbackURL) {
		return profiles.UserProfile{}, ErrInvalidVerificationLink
	}

	var stash Stash
	stashFound := true
	err := s.db.WithContext(ctx).Where("uid = ?", principal.UID).Take(&stash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stashFound = false
	} else if err != nil {
		s.logger.Error("signup stash read failed", zap.String("uid", principal.UID), zap.Error(err))
		return profiles.UserProfile{}, err
	}

	address := ""
	if stashFound {
		address = stash.EmailForSignIn
	}
	if address == "" {
		address = strings.ToLower(strings.TrimSpace(explicitAddress))
	}
	if address == "" {
		return profiles.UserProfile{}, ErrEmailRequired
	}

	confirmed, err := s.channel.CompleteLink(ctx, address, callbackURL)
	if err != nil {
		return profiles.UserProfile{}, fmt.Errorf("%w: %v", ErrVerificationExchangeFailed, err)
	}

	if !stashFound {
		return profiles.UserProfile{}, ErrStashMissing
	}

	var payload stashPayload
	if err := json.Unmarshal([]byte(stash.PayloadJSON), &payload); err != nil {
		s.logger.Error("signup stash payload corrupt", zap.String("uid", principal.UID), zap.Error(err))
		return profiles.UserProfile{}, ErrStashMissing
	}

	email := payload.ProviderEmail
	if email == "" {
		email = principal.Email
	}
	photo := payload.PhotoURL
	if photo == "" {
		photo = principal.PhotoURL
	}

	profile, err := s.profiles.Create(ctx, profiles.UserProfile{
		UID:         principal.UID,
		Email:       email,
		SchoolEmail: confirmed,
		Nickname:    payload.Nickname,
		School:      payload.School,
		Major:       payload.Major,
		PhotoURL:    photo,
		CreatedAt:   s.clock().UTC(),
	})
	if err != nil {
		return profiles.UserProfile{}, err
	}

	// Stash cleanup is best-effort; the profile is already authoritative.
	if err := s.db.WithContext(ctx).Delete(&Stash{}, "uid = ?", principal.UID).Error; err != nil {
		s.logger.Warn("signup stash cleanup failed", zap.String("uid", principal.UID), zap.Error(err))
	}

	s.logger.Info("signup completed",
		zap.String("uid", principal.UID),
		zap.String("school_email", confirmed))
	return profile, nil
}

func (s *Service) validateSchoolEmail(raw string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", ErrInvalidSchoolEmail
	}
	domain := address[at+1:]
	if !strings.HasSuffix(domain, s.suffix) {
		return "", ErrInvalidSchoolEmail
	}
	return address, nil
}
