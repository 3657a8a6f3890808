package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/unihubs/campushub/backend/internal/auth"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"go.uber.org/zap"
)

const sessionEventHeartbeat = "heartbeat"

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	NeedsSignup bool   `json:"needs_signup"`
}

// handleGoogleAuth exchanges a Google ID token for a backend session token.
// The response carries whether the principal still has to complete signup so
// the client can route straight to the signup screen.
func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	principal, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), principal)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	signedUp, err := h.profiles.Exists(c.Request.Context(), principal.UID)
	if err != nil {
		h.logger.Error("signup probe failed", zap.String("uid", principal.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	h.sessions.Publish(auth.SessionEvent{
		EventType: auth.SessionEventSignedIn,
		Principal: principal,
		Timestamp: time.Now().UTC(),
	})

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		NeedsSignup: !signedUp,
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	principal := currentPrincipal(c)
	h.sessions.Publish(auth.SessionEvent{
		EventType: auth.SessionEventSignedOut,
		Principal: principal,
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

// handleSessionEvents streams current-principal changes over SSE. A client
// re-attaching displaces the previous stream for the same principal.
func (h *httpHandler) handleSessionEvents(c *gin.Context) {
	principal := currentPrincipal(c)
	stream, cancel := h.sessions.Subscribe(c.Request.Context(), principal.UID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	// Push headers out immediately so the client sees the stream open before
	// the first event arrives.
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, gin.H{
				"uid":       event.Principal.UID,
				"email":     event.Principal.Email,
				"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(sessionEventHeartbeat, gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// handleCurrentProfile returns the signed-in principal's profile. A 404 tells
// the client the signup flow has not been completed yet.
func (h *httpHandler) handleCurrentProfile(c *gin.Context) {
	principal := currentPrincipal(c)
	profile, err := h.profiles.Get(c.Request.Context(), principal.UID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "redirect": "/signup"})
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", zap.String("uid", principal.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, profile)
}
