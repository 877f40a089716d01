// Package handler exposes the authentication HTTP endpoints.
package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nebulium/authcore/config"
	"github.com/nebulium/authcore/data"
	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/middleware"
	"github.com/nebulium/authcore/net/resp"
	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/nebulium/authcore/security/ratelimit"
	"github.com/nebulium/authcore/service"
)

// Handler bundles the HTTP handlers over the service layer.
type Handler struct {
	auth     *service.AuthService
	sessions *service.SessionService
	mfa      *service.MfaService
	audit    *service.AuditService
	data     *data.Data
	logger   *logger.Logger
}

func New(auth *service.AuthService, sessions *service.SessionService, mfa *service.MfaService, audit *service.AuditService, d *data.Data, log *logger.Logger) *Handler {
	return &Handler{
		auth:     auth,
		sessions: sessions,
		mfa:      mfa,
		audit:    audit,
		data:     d,
		logger:   log,
	}
}

// RegisterRoutes wires every endpoint with its middleware chain.
func (h *Handler) RegisterRoutes(r *gin.Engine, tokenManager *securityjwt.TokenManager, limiter *ratelimit.Limiter, cfg *config.Config, log *logger.Logger) {
	var queryTimeout time.Duration
	if cfg.Data != nil {
		queryTimeout = cfg.Data.QueryTimeout
	}
	r.Use(middleware.Trace(), middleware.Logging(log), middleware.Timeout(queryTimeout), gin.Recovery())

	r.GET("/health", h.Health)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login",
			middleware.RateLimit(limiter, "login", cfg.RateLimit.Login.MaxAttempts, cfg.RateLimit.Login.Window),
			h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/password/reset",
			middleware.RateLimit(limiter, "reset", cfg.RateLimit.Reset.MaxAttempts, cfg.RateLimit.Reset.Window),
			h.RequestPasswordReset)
		authGroup.POST("/password/reset/confirm", h.ConfirmPasswordReset)
		authGroup.POST("/email/verify",
			middleware.RateLimit(limiter, "verify", cfg.RateLimit.Reset.MaxAttempts, cfg.RateLimit.Reset.Window),
			h.RequestEmailVerification)
		authGroup.POST("/email/verify/confirm", h.ConfirmEmailVerification)
	}

	authed := r.Group("/", middleware.AuthMiddleware(tokenManager, h.sessions, log))
	{
		authed.POST("/auth/logout", h.Logout)
		authed.GET("/auth/sessions", h.ListSessions)
		authed.DELETE("/auth/sessions", h.RevokeAllSessions)
		authed.POST("/auth/password/change", h.ChangePassword)
		authed.GET("/me", h.Me)

		mfaGroup := authed.Group("/auth/mfa",
			middleware.RateLimit(limiter, "mfa", cfg.RateLimit.MFA.MaxAttempts, cfg.RateLimit.MFA.Window))
		{
			mfaGroup.POST("/totp/enroll", h.EnrollTotp)
			mfaGroup.POST("/totp/enable", h.EnableTotp)
			mfaGroup.POST("/totp/disable", middleware.RequireFreshProof(h.mfa), h.DisableTotp)
			mfaGroup.POST("/backup/regenerate", h.RegenerateBackupCodes)
			mfaGroup.POST("/sms/send", h.SendSmsCode)
			mfaGroup.POST("/sms/verify", h.VerifySmsCode)
		}

		authed.GET("/admin/security/stats",
			middleware.RequirePermission(h.audit, "security:stats:read"),
			h.SecurityStats)
	}
}

// Health reports process and dependency liveness.
func (h *Handler) Health(c *gin.Context) {
	if err := h.data.Health(c.Request.Context()); err != nil {
		resp.Fail(c.Writer, resp.ServerError("storage unavailable"))
		return
	}
	resp.Success(c.Writer, map[string]string{"status": "ok"})
}

// failError maps service errors to the response envelope. Anything
// unclassified is a server fault, never an authentication failure.
func (h *Handler) failError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		resp.Fail(c.Writer, resp.FromCode(ecode.AuthFailed))
	case errors.Is(err, service.ErrAccountLocked):
		resp.Fail(c.Writer, resp.Locked(ecode.Text(ecode.AccountLocked)))
	case errors.Is(err, service.ErrTwoFactorRequired):
		resp.Fail(c.Writer, resp.FromCode(ecode.TwoFactorRequired))
	case errors.Is(err, service.ErrTwoFactorInvalid):
		resp.Fail(c.Writer, resp.FromCode(ecode.TwoFactorInvalid))
	case errors.Is(err, service.ErrSessionInvalid):
		resp.Fail(c.Writer, resp.FromCode(ecode.SessionInvalid))
	case errors.Is(err, service.ErrTokenInvalid):
		resp.Fail(c.Writer, resp.FromCode(ecode.TokenInvalid))
	case errors.Is(err, service.ErrEmailExists):
		resp.Fail(c.Writer, resp.FromCode(ecode.EmailExists))
	case errors.Is(err, service.ErrStateConflict):
		resp.Fail(c.Writer, resp.FromCode(ecode.StateConflict))
	case errors.Is(err, service.ErrNotFound):
		resp.Fail(c.Writer, resp.FromCode(ecode.NotFound))
	default:
		h.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
		resp.Fail(c.Writer, resp.ServerError(ecode.Text(ecode.ServerErr)))
	}
}

// failBinding maps binding errors: malformed bodies are bad requests,
// field-level failures are validation errors.
func failBinding(c *gin.Context, err error) {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		fields := make(map[string]any, len(verr))
		for _, fe := range verr {
			fields[fe.Field()] = fe.Tag()
		}
		resp.Fail(c.Writer, resp.UnprocessableEntity(ecode.Text(ecode.ValidationFailed), fields))
		return
	}
	resp.Fail(c.Writer, resp.BadRequest(err.Error()))
}
