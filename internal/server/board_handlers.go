package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unihubs/campushub/backend/internal/board"
	"github.com/unihubs/campushub/backend/internal/gate"
	"go.uber.org/zap"
)

type createPostPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createCommentPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	hubID := c.Param("id")
	if _, ok := h.gateCheck(c, gate.LevelHubMember, hubID); !ok {
		return
	}

	posts, err := h.board.ListPosts(c.Request.Context(), hubID)
	if err != nil {
		h.writeBoardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	hubID := c.Param("id")
	profile, ok := h.gateCheck(c, gate.LevelHubMember, hubID)
	if !ok {
		return
	}

	var request createPostPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	post, err := h.board.CreatePost(c.Request.Context(), profile, hubID, request.Title, request.Content)
	if err != nil {
		h.writeBoardError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// handleGetPost gates on membership of the post's hub, resolved from the post
// itself.
func (h *httpHandler) handleGetPost(c *gin.Context) {
	post, ok := h.gatedPost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	post, ok := h.gatedPost(c)
	if !ok {
		return
	}

	comments, err := h.board.ListComments(c.Request.Context(), post.ID)
	if err != nil {
		h.writeBoardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// handleCreateComment requires only a completed signup; hub membership is not
// re-checked at comment time.
func (h *httpHandler) handleCreateComment(c *gin.Context) {
	profile, ok := h.gateCheck(c, gate.LevelSignedUp, "")
	if !ok {
		return
	}

	var request createCommentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	comment, err := h.board.CreateComment(c.Request.Context(), profile, c.Param("id"), request.Content)
	if err != nil {
		h.writeBoardError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) gatedPost(c *gin.Context) (board.Post, bool) {
	post, err := h.board.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeBoardError(c, err)
		return board.Post{}, false
	}
	if _, ok := h.gateCheck(c, gate.LevelHubMember, post.HubID); !ok {
		return board.Post{}, false
	}
	return post, true
}

func (h *httpHandler) writeBoardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, board.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, board.ErrInvalidPostForm), errors.Is(err, board.ErrInvalidComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		h.logger.Error("board operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
