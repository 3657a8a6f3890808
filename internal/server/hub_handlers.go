package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unihubs/campushub/backend/internal/gate"
	"github.com/unihubs/campushub/backend/internal/hubs"
	"go.uber.org/zap"
)

type createHubPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (h *httpHandler) handleListHubs(c *gin.Context) {
	if _, ok := h.gateCheck(c, gate.LevelSignedIn, ""); !ok {
		return
	}
	all, err := h.hubs.ListHubs(c.Request.Context())
	if err != nil {
		h.writeHubErrorFor(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"hubs": all})
}

func (h *httpHandler) handleCreateHub(c *gin.Context) {
	profile, ok := h.gateCheck(c, gate.LevelSignedUp, "")
	if !ok {
		return
	}

	var request createHubPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	hub, err := h.hubs.CreateHub(c.Request.Context(), profile, request.Name, request.Description, request.Category)
	if err != nil {
		h.writeHubErrorFor(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, hub)
}

// handleGetHub returns the hub together with its enriched member list.
func (h *httpHandler) handleGetHub(c *gin.Context) {
	if _, ok := h.gateCheck(c, gate.LevelSignedIn, ""); !ok {
		return
	}
	hubID := c.Param("id")

	hub, err := h.hubs.GetHub(c.Request.Context(), hubID)
	if err != nil {
		h.writeHubErrorFor(c, err, hubID)
		return
	}
	members, err := h.hubs.ListMembers(c.Request.Context(), hubID)
	if err != nil {
		h.writeHubErrorFor(c, err, hubID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hub": hub, "members": members})
}

func (h *httpHandler) handleJoinHub(c *gin.Context) {
	profile, ok := h.gateCheck(c, gate.LevelSignedUp, "")
	if !ok {
		return
	}
	hubID := c.Param("id")

	membership, err := h.hubs.JoinHub(c.Request.Context(), profile.UID, hubID)
	if err != nil {
		h.writeHubErrorFor(c, err, hubID)
		return
	}
	c.JSON(http.StatusCreated, membership)
}

func (h *httpHandler) handleLeaveHub(c *gin.Context) {
	profile, ok := h.gateCheck(c, gate.LevelSignedUp, "")
	if !ok {
		return
	}
	hubID := c.Param("id")

	if err := h.hubs.LeaveHub(c.Request.Context(), profile.UID, hubID); err != nil {
		h.writeHubErrorFor(c, err, hubID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *httpHandler) handleDeleteHub(c *gin.Context) {
	hubID := c.Param("id")
	profile, ok := h.gateCheck(c, gate.LevelHubOwner, hubID)
	if !ok {
		return
	}

	if err := h.hubs.DeleteHub(c.Request.Context(), profile.UID, hubID); err != nil {
		h.writeHubErrorFor(c, err, hubID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *httpHandler) writeHubErrorFor(c *gin.Context, err error, hubID string) {
	switch {
	case errors.Is(err, hubs.ErrHubNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, hubs.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already_member"})
	case errors.Is(err, hubs.ErrNotMember):
		c.JSON(http.StatusConflict, gin.H{"error": "not_member"})
	case errors.Is(err, hubs.ErrOwnerCannotLeave):
		c.JSON(http.StatusConflict, gin.H{"error": "owner_cannot_leave"})
	case errors.Is(err, hubs.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": gate.RequiresOwnership.String(), "redirect": redirectFor(gate.RequiresOwnership, hubID)})
	case errors.Is(err, hubs.ErrInvalidHubForm):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		h.logger.Error("hub operation failed", zap.String("hub_id", hubID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
