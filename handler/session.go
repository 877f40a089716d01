package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/middleware"
	"github.com/nebulium/authcore/net/resp"
)

// ListSessions returns the user's live sessions, most recently used first.
func (h *Handler) ListSessions(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	sessions, err := h.sessions.List(c.Request.Context(), userID)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, sessions)
}

// RevokeAllSessions logs the user out everywhere, including here.
func (h *Handler) RevokeAllSessions(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	if err := h.sessions.RevokeAll(c.Request.Context(), userID); err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, map[string]string{"message": "all sessions revoked"})
}
