package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/middleware"
	"github.com/nebulium/authcore/net/resp"
	"github.com/nebulium/authcore/structs"
)

// EnrollTotp starts second-factor enrollment: fresh secret, provisioning
// URI, and the one-time view of the backup codes.
func (h *Handler) EnrollTotp(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	enrollment, err := h.mfa.Enroll(c.Request.Context(), userID)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, enrollment)
}

// EnableTotp completes enrollment after the confirmation code verifies.
func (h *Handler) EnableTotp(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)
	if err := h.mfa.Enable(c.Request.Context(), userID, req.Code); err != nil {
		h.failError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), &structs.SecurityEvent{
		Type:      structs.EventTwoFactorEnabled,
		Severity:  structs.SeverityMedium,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	resp.Success(c.Writer, map[string]string{"message": "two-factor authentication enabled"})
}

// DisableTotp turns the second factor off.
func (h *Handler) DisableTotp(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	if err := h.mfa.Disable(c.Request.Context(), userID); err != nil {
		h.failError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), &structs.SecurityEvent{
		Type:      structs.EventTwoFactorDisabled,
		Severity:  structs.SeverityHigh,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	resp.Success(c.Writer, map[string]string{"message": "two-factor authentication disabled"})
}

// RegenerateBackupCodes replaces the backup code set.
func (h *Handler) RegenerateBackupCodes(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	codes, err := h.mfa.RegenerateBackupCodes(c.Request.Context(), userID)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, map[string]any{"backup_codes": codes})
}

// SendSmsCode issues a one-time code to the account's phone.
func (h *Handler) SendSmsCode(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.failError(c, err)
		return
	}
	if user.Phone == "" {
		resp.Fail(c.Writer, resp.BadRequest("no phone number on file"))
		return
	}

	if err := h.mfa.IssueSmsCode(c.Request.Context(), user.Phone); err != nil {
		h.failError(c, err)
		return
	}
	resp.Accepted(c.Writer, "code sent")
}

// VerifySmsCode checks and consumes the live code for the account's phone.
func (h *Handler) VerifySmsCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)
	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.failError(c, err)
		return
	}

	ok, err := h.mfa.VerifySmsCode(c.Request.Context(), user.Phone, req.Code)
	if err != nil {
		h.failError(c, err)
		return
	}
	if !ok {
		resp.Fail(c.Writer, resp.FromCode(ecode.TwoFactorInvalid))
		return
	}
	resp.Success(c.Writer, map[string]string{"message": "code verified"})
}
