package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/net/resp"
)

// SecurityStats aggregates the audit log over a trailing window of days
// (default 7, capped at 90).
func (h *Handler) SecurityStats(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			resp.Fail(c.Writer, resp.BadRequest("days must be an integer between 1 and 90"))
			return
		}
		days = parsed
	}

	stats, err := h.audit.Statistics(c.Request.Context(), days)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, stats)
}
