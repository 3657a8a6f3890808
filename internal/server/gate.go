package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unihubs/campushub/backend/internal/gate"
	"github.com/unihubs/campushub/backend/internal/hubs"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"go.uber.org/zap"
)

// gateCheck loads the access facts for the current principal and the target
// hub, evaluates them against the required level and, when the outcome is not
// Allowed, writes the decision response. The returned profile is the zero
// value below LevelSignedUp.
func (h *httpHandler) gateCheck(c *gin.Context, required gate.Level, hubID string) (profiles.UserProfile, bool) {
	principal := currentPrincipal(c)

	facts := gate.Facts{PrincipalPresent: principal.Present()}
	var profile profiles.UserProfile

	if facts.PrincipalPresent && required >= gate.LevelSignedUp {
		loaded, err := h.profiles.Get(c.Request.Context(), principal.UID)
		switch {
		case err == nil:
			profile = loaded
			facts.ProfilePresent = true
		case errors.Is(err, profiles.ErrProfileNotFound):
			// facts stay absent
		default:
			h.logger.Error("gate profile lookup failed", zap.String("uid", principal.UID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return profiles.UserProfile{}, false
		}
	}

	if facts.ProfilePresent && required >= gate.LevelHubMember {
		membership, err := h.hubs.Membership(c.Request.Context(), principal.UID, hubID)
		switch {
		case err == nil:
			facts.MembershipRole = membership.Role
		case errors.Is(err, hubs.ErrNotMember):
			// facts stay absent
		default:
			h.logger.Error("gate membership lookup failed",
				zap.String("uid", principal.UID),
				zap.String("hub_id", hubID),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return profiles.UserProfile{}, false
		}
	}

	decision := gate.Evaluate(facts, required)
	if decision == gate.Allowed {
		return profile, true
	}

	status := http.StatusForbidden
	if decision == gate.RequiresLogin {
		status = http.StatusUnauthorized
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":    decision.String(),
		"redirect": redirectFor(decision, hubID),
	})
	return profiles.UserProfile{}, false
}

// redirectFor mirrors the client navigation for each denied decision: the
// landing screen, the signup screen, or the hub page where joining happens.
func redirectFor(decision gate.Decision, hubID string) string {
	switch decision {
	case gate.RequiresLogin:
		return "/"
	case gate.RequiresSignup:
		return "/signup"
	case gate.RequiresMembership, gate.RequiresOwnership:
		return "/hubs/" + hubID
	default:
		return "/"
	}
}
