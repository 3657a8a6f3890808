package maillink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

const (
	defaultLinkTTL = 15 * time.Minute

	linkMode       = "signIn"
	linkQueryMode  = "mode"
	linkQueryToken = "token"
	callbackPath   = "/verify-email"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingDialer   = errors.New("mail dialer is required")
	errMissingSender   = errors.New("sender address is required")
	errMissingAddress  = errors.New("destination address is required")
	errMissingBaseURL  = errors.New("callback base url is required")

	// ErrLinkInvalid indicates the URL is not a recognizable pending sign-in link.
	ErrLinkInvalid = errors.New("maillink: invalid sign-in link")
	// ErrLinkConsumed indicates the link was already exchanged once.
	ErrLinkConsumed = errors.New("maillink: sign-in link already used")
	// ErrLinkExpired indicates the link outlived its validity window.
	ErrLinkExpired = errors.New("maillink: sign-in link expired")
	// ErrAddressMismatch indicates the supplied address does not match the
	// address the link was dispatched to.
	ErrAddressMismatch = errors.New("maillink: address does not match link")
)

// Dialer abstracts the SMTP transport so tests can capture outbound mail.
// *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(messages ...*gomail.Message) error
}

// ServiceConfig describes the dependencies of the email verification channel.
type ServiceConfig struct {
	Database   *gorm.DB
	Dialer     Dialer
	FromAddr   string
	FromName   string
	LinkTTL    time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
	TokenMaker func() string
}

// Service dispatches single-use sign-in links and exchanges them for a
// confirmed proof of address ownership.
type Service struct {
	db        *gorm.DB
	dialer    Dialer
	fromAddr  string
	fromName  string
	linkTTL   time.Duration
	clock     func() time.Time
	logger    *zap.Logger
	makeToken func() string
}

// NewService constructs the channel with validated configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Dialer == nil {
		return nil, errMissingDialer
	}
	if strings.TrimSpace(cfg.FromAddr) == "" {
		return nil, errMissingSender
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	makeToken := cfg.TokenMaker
	if makeToken == nil {
		makeToken = uuid.NewString
	}
	return &Service{
		db:        cfg.Database,
		dialer:    cfg.Dialer,
		fromAddr:  strings.TrimSpace(cfg.FromAddr),
		fromName:  strings.TrimSpace(cfg.FromName),
		linkTTL:   ttl,
		clock:     clock,
		logger:    logger,
		makeToken: makeToken,
	}, nil
}

// SendLink creates a pending link for the address and emails it. The returned
// error carries the transport failure verbatim when dispatch fails.
func (s *Service) SendLink(ctx context.Context, address, callbackBaseURL string) error {
	address = normalizeAddress(address)
	if address == "" {
		return errMissingAddress
	}
	base := strings.TrimRight(strings.TrimSpace(callbackBaseURL), "/")
	if base == "" {
		return errMissingBaseURL
	}

	now := s.clock().UTC()
	link := SignInLink{
		Token:     s.makeToken(),
		Address:   address,
		ExpiresAt: now.Add(s.linkTTL),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		s.logger.Error("sign-in link insert failed", zap.String("address", address), zap.Error(err))
		return err
	}

	callback := fmt.Sprintf("%s%s?%s=%s&%s=%s",
		base, callbackPath,
		linkQueryMode, linkMode,
		linkQueryToken, url.QueryEscape(link.Token))

	message := gomail.NewMessage()
	if s.fromName != "" {
		message.SetHeader("From", fmt.Sprintf("%s <%s>", s.fromName, s.fromAddr))
	} else {
		message.SetHeader("From", s.fromAddr)
	}
	message.SetHeader("To", address)
	message.SetHeader("Subject", "학교 이메일 인증")
	message.SetBody("text/html", renderLinkBody(callback, s.linkTTL))

	if err := s.dialer.DialAndSend(message); err != nil {
		s.logger.Warn("sign-in link dispatch failed", zap.String("address", address), zap.Error(err))
		return err
	}

	s.logger.Info("sign-in link dispatched", zap.String("address", address))
	return nil
}

// IsValidLink reports whether the URL has the shape of a pending sign-in link.
// It does not consult the store; CompleteLink performs the authoritative check.
func (s *Service) IsValidLink(rawURL string) bool {
	_, err := parseLinkToken(rawURL)
	return err == nil
}

// CompleteLink exchanges the address and link for a confirmed address. The
// link is consumed atomically; replaying a consumed link fails.
func (s *Service) CompleteLink(ctx context.Context, address, rawURL string) (string, error) {
	address = normalizeAddress(address)
	if address == "" {
		return "", errMissingAddress
	}
	token, err := parseLinkToken(rawURL)
	if err != nil {
		return "", err
	}

	var link SignInLink
	err = s.db.WithContext(ctx).Where("token = ?", token).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrLinkInvalid
	}
	if err != nil {
		s.logger.Error("sign-in link lookup failed", zap.Error(err))
		return "", err
	}

	if link.Address != address {
		return "", ErrAddressMismatch
	}
	now := s.clock().UTC()
	if now.After(link.ExpiresAt) {
		return "", ErrLinkExpired
	}

	// Conditional update so two concurrent exchanges cannot both win.
	result := s.db.WithContext(ctx).Model(&SignInLink{}).
		Where("token = ? AND consumed = ?", token, false).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": now})
	if result.Error != nil {
		s.logger.Error("sign-in link consume failed", zap.Error(result.Error))
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", ErrLinkConsumed
	}

	return link.Address, nil
}

func parseLinkToken(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrLinkInvalid
	}
	query := parsed.Query()
	if query.Get(linkQueryMode) != linkMode {
		return "", ErrLinkInvalid
	}
	token := strings.TrimSpace(query.Get(linkQueryToken))
	if token == "" {
		return "", ErrLinkInvalid
	}
	return token, nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func renderLinkBody(callback string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	return fmt.Sprintf(
		`<p>아래 링크를 눌러 학교 이메일 인증을 완료해주세요.</p>
<p><a href=%q>이메일 인증하기</a></p>
<p>링크는 %d분 동안 유효하며 한 번만 사용할 수 있습니다.</p>`,
		callback, minutes)
}
