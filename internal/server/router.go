package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/unihubs/campushub/backend/internal/auth"
	"github.com/unihubs/campushub/backend/internal/board"
	"github.com/unihubs/campushub/backend/internal/hubs"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"github.com/unihubs/campushub/backend/internal/signup"
	"go.uber.org/zap"
)

const principalContextKey = "campushub_principal"

var (
	errMissingVerifier      = errors.New("identity verifier dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingSessionFeed   = errors.New("session feed dependency required")
	errMissingProfiles      = errors.New("profile service dependency required")
	errMissingHubs          = errors.New("hub service dependency required")
	errMissingBoard         = errors.New("board service dependency required")
	errMissingSignup        = errors.New("signup service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// IdentityVerifier validates identity provider ID tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.Principal, error)
}

// SessionTokenManager issues and validates backend session tokens.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, principal auth.Principal) (string, int64, error)
	ValidateSessionToken(token string) (auth.Principal, error)
}

type Dependencies struct {
	Verifier IdentityVerifier
	Tokens   SessionTokenManager
	Sessions *auth.SessionFeed
	Profiles *profiles.Service
	Hubs     *hubs.Service
	Board    *board.Service
	Signup   *signup.Service
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionFeed
	}
	if deps.Profiles == nil {
		return nil, errMissingProfiles
	}
	if deps.Hubs == nil {
		return nil, errMissingHubs
	}
	if deps.Board == nil {
		return nil, errMissingBoard
	}
	if deps.Signup == nil {
		return nil, errMissingSignup
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		verifier: deps.Verifier,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		profiles: deps.Profiles,
		hubs:     deps.Hubs,
		board:    deps.Board,
		signup:   deps.Signup,
		logger:   logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/auth/events", handler.handleSessionEvents)
	protected.GET("/me", handler.handleCurrentProfile)

	protected.POST("/signup/start", handler.handleSignupStart)
	protected.POST("/signup/complete", handler.handleSignupComplete)

	protected.GET("/hubs", handler.handleListHubs)
	protected.POST("/hubs", handler.handleCreateHub)
	protected.GET("/hubs/:id", handler.handleGetHub)
	protected.POST("/hubs/:id/join", handler.handleJoinHub)
	protected.POST("/hubs/:id/leave", handler.handleLeaveHub)
	protected.DELETE("/hubs/:id", handler.handleDeleteHub)

	protected.GET("/hubs/:id/posts", handler.handleListPosts)
	protected.POST("/hubs/:id/posts", handler.handleCreatePost)
	protected.GET("/posts/:id", handler.handleGetPost)
	protected.GET("/posts/:id/comments", handler.handleListComments)
	protected.POST("/posts/:id/comments", handler.handleCreateComment)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	verifier IdentityVerifier
	tokens   SessionTokenManager
	sessions *auth.SessionFeed
	profiles *profiles.Service
	hubs     *hubs.Service
	board    *board.Service
	signup   *signup.Service
	logger   *zap.Logger
}

// authorizeRequest resolves the backend session token into a Principal. The
// token is taken from the Authorization header, or from the access_token query
// parameter for EventSource clients that cannot set headers.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	switch {
	case strings.HasPrefix(header, "Bearer "):
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	case header == "":
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error(), "redirect": "/"})
		return
	}

	principal, err := h.tokens.ValidateSessionToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, auth.ErrSessionTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "redirect": "/"})
		return
	}
	c.Set(principalContextKey, principal)
	c.Next()
}

func currentPrincipal(c *gin.Context) auth.Principal {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return auth.Principal{}
	}
	principal, ok := value.(auth.Principal)
	if !ok {
		return auth.Principal{}
	}
	return principal
}
