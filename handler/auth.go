package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/consts"
	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/middleware"
	"github.com/nebulium/authcore/net/resp"
	"github.com/nebulium/authcore/service"
)

// Register handles account creation.
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,strongpassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.WithStatusCode(c.Writer, http.StatusCreated, user)
}

// Login runs the credential check plus optional second-factor proof. The
// proof rides in headers: a time-based code is tried first, a backup code
// second.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		TotpCode:   c.GetHeader(consts.TwoFactorTokenKey),
		BackupCode: c.GetHeader(consts.BackupCodeKey),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, result.Tokens)
}

// Refresh rotates a refresh token into a fresh pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, result.Tokens)
}

// Logout revokes the current session.
func (h *Handler) Logout(c *gin.Context) {
	userID, _ := middleware.GetCurrentUserID(c)
	sessionID, ok := middleware.GetCurrentSessionID(c)
	if !ok {
		resp.Fail(c.Writer, resp.FromCode(ecode.AuthRequired))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), userID, sessionID); err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, map[string]string{"message": "logged out"})
}

// ChangePassword requires the current password and revokes other sessions.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,strongpassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)
	sessionID, _ := middleware.GetCurrentSessionID(c)
	if err := h.auth.ChangePassword(c.Request.Context(), userID, sessionID, req.CurrentPassword, req.NewPassword); err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, map[string]string{"message": "password changed"})
}

// RequestPasswordReset always answers 202, whether or not the account
// exists.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.failError(c, err)
		return
	}
	resp.Accepted(c.Writer, "if the account exists, a reset link has been sent")
}

// ConfirmPasswordReset consumes the token and sets the new password.
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,strongpassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	if err := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, map[string]string{"message": "password reset"})
}

// RequestEmailVerification always answers 202.
func (h *Handler) RequestEmailVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	if err := h.auth.RequestEmailVerification(c.Request.Context(), req.Email); err != nil {
		h.failError(c, err)
		return
	}
	resp.Accepted(c.Writer, "if the account exists, a verification link has been sent")
}

// ConfirmEmailVerification consumes the token and marks the address
// verified.
func (h *Handler) ConfirmEmailVerification(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBinding(c, err)
		return
	}

	if err := h.auth.ConfirmEmailVerification(c.Request.Context(), req.Token); err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, map[string]string{"message": "email verified"})
}

// Me returns the authenticated profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.FromCode(ecode.AuthRequired))
		return
	}
	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.failError(c, err)
		return
	}
	resp.Success(c.Writer, user)
}
