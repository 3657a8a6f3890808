package server

import (
	contextpkg "context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/unihubs/campushub/backend/internal/auth"
	"github.com/unihubs/campushub/backend/internal/board"
	"github.com/unihubs/campushub/backend/internal/hubs"
	"github.com/unihubs/campushub/backend/internal/ids"
	"github.com/unihubs/campushub/backend/internal/maillink"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"github.com/unihubs/campushub/backend/internal/signup"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

type stubVerifier struct {
	principal auth.Principal
	err       error
}

func (s stubVerifier) Verify(contextpkg.Context, string) (auth.Principal, error) {
	return s.principal, s.err
}

type nopDialer struct{}

func (nopDialer) DialAndSend(...*gomail.Message) error {
	return nil
}

type testEnv struct {
	handler  http.Handler
	tokens   *auth.TokenIssuer
	sessions *auth.SessionFeed
	profiles *profiles.Service
	hubs     *hubs.Service
	board    *board.Service
	db       *gorm.DB
}

func newTestEnv(t *testing.T, verifier IdentityVerifier) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&profiles.UserProfile{},
		&hubs.Hub{},
		&hubs.Membership{},
		&board.Post{},
		&board.Comment{},
		&signup.Stash{},
		&maillink.SignInLink{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create profile service: %v", err)
	}
	hubService, err := hubs.NewService(hubs.ServiceConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
		Profiles:   profileService,
	})
	if err != nil {
		t.Fatalf("failed to create hub service: %v", err)
	}
	boardService, err := board.NewService(board.ServiceConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create board service: %v", err)
	}
	channel, err := maillink.NewService(maillink.ServiceConfig{
		Database: db,
		Dialer:   nopDialer{},
		FromAddr: "noreply@campushub.example",
	})
	if err != nil {
		t.Fatalf("failed to create maillink service: %v", err)
	}
	signupService, err := signup.NewService(signup.ServiceConfig{
		Database:        db,
		Channel:         channel,
		Profiles:        profileService,
		CallbackBaseURL: "https://campushub.example",
	})
	if err != nil {
		t.Fatalf("failed to create signup service: %v", err)
	}

	tokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
		TokenTTL:      time.Minute,
	})
	sessions := auth.NewSessionFeed()

	if verifier == nil {
		verifier = stubVerifier{principal: auth.Principal{UID: "user-123", Email: "user@gmail.com"}}
	}

	handler, err := NewHTTPHandler(Dependencies{
		Verifier: verifier,
		Tokens:   tokens,
		Sessions: sessions,
		Profiles: profileService,
		Hubs:     hubService,
		Board:    boardService,
		Signup:   signupService,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	return &testEnv{
		handler:  handler,
		tokens:   tokens,
		sessions: sessions,
		profiles: profileService,
		hubs:     hubService,
		board:    boardService,
		db:       db,
	}
}

func (env *testEnv) tokenFor(t *testing.T, principal auth.Principal) string {
	t.Helper()
	token, _, err := env.tokens.IssueSessionToken(contextpkg.Background(), principal)
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}
	return token
}

func (env *testEnv) mustProfile(t *testing.T, uid, nickname string) profiles.UserProfile {
	t.Helper()
	profile, err := env.profiles.Create(contextpkg.Background(), profiles.UserProfile{
		UID:      uid,
		Email:    uid + "@gmail.com",
		Nickname: nickname,
		School:   "한국대학교",
		Major:    "컴퓨터공학과",
	})
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return profile
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}
