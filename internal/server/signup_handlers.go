package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"github.com/unihubs/campushub/backend/internal/signup"
	"go.uber.org/zap"
)

type signupStartPayload struct {
	Nickname    string `json:"nickname"`
	School      string `json:"school"`
	Major       string `json:"major"`
	SchoolEmail string `json:"school_email"`
}

type signupCompletePayload struct {
	CallbackURL string `json:"callback_url"`
	Email       string `json:"email"`
}

func (h *httpHandler) handleSignupStart(c *gin.Context) {
	principal := currentPrincipal(c)

	var request signupStartPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.signup.StartSignup(c.Request.Context(), principal, signup.Form{
		Nickname:    request.Nickname,
		School:      request.School,
		Major:       request.Major,
		SchoolEmail: request.SchoolEmail,
	})
	if err != nil {
		h.writeSignupError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "verification_email_sent"})
}

func (h *httpHandler) handleSignupComplete(c *gin.Context) {
	principal := currentPrincipal(c)

	var request signupCompletePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var profile profiles.UserProfile
	var err error
	if request.Email == "" {
		profile, err = h.signup.CompleteSignup(c.Request.Context(), principal, request.CallbackURL)
	} else {
		profile, err = h.signup.CompleteSignupWithEmail(c.Request.Context(), principal, request.CallbackURL, request.Email)
	}
	if err != nil {
		h.writeSignupError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *httpHandler) writeSignupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, signup.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "requires_login", "redirect": "/"})
	case errors.Is(err, signup.ErrIncompleteForm):
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete_form"})
	case errors.Is(err, signup.ErrInvalidSchoolEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_school_email"})
	case errors.Is(err, signup.ErrEmailDispatchFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "email_dispatch_failed"})
	case errors.Is(err, signup.ErrInvalidVerificationLink):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_verification_link"})
	case errors.Is(err, signup.ErrEmailRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_required"})
	case errors.Is(err, signup.ErrVerificationExchangeFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "verification_failed"})
	case errors.Is(err, signup.ErrStashMissing):
		c.JSON(http.StatusConflict, gin.H{"error": "signup_data_missing"})
	case errors.Is(err, profiles.ErrProfileExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_signed_up"})
	default:
		h.logger.Error("signup operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
