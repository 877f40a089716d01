// Package middleware provides the gin middleware chain: trace IDs, request
// logging, bearer authentication with session validation, authorization
// gates, and rate limiting.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/consts"
	"github.com/nebulium/authcore/ctxutil"
	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/net/resp"
	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/nebulium/authcore/service"
)

// AuthMiddleware verifies the bearer token, then validates the backing
// session. Both gates must pass: a cryptographically valid token whose
// session was revoked is rejected.
func AuthMiddleware(tokenManager *securityjwt.TokenManager, sessions *service.SessionService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			resp.Fail(c.Writer, resp.FromCode(ecode.AuthRequired))
			c.Abort()
			return
		}

		claims, err := tokenManager.DecodeToken(token)
		if err != nil || !securityjwt.IsAccessToken(claims) {
			resp.Fail(c.Writer, resp.FromCode(ecode.TokenInvalid))
			c.Abort()
			return
		}

		userID := securityjwt.GetUserIDFromToken(claims)
		sessionID := securityjwt.GetSessionIDFromToken(claims)
		if userID == "" || sessionID == "" {
			resp.Fail(c.Writer, resp.FromCode(ecode.TokenInvalid))
			c.Abort()
			return
		}

		session, err := sessions.Validate(c.Request.Context(), sessionID)
		if err != nil {
			log.Error(c.Request.Context(), "session validation failed", "session_id", sessionID, "error", err)
			resp.Fail(c.Writer, resp.ServerError(ecode.Text(ecode.ServerErr)))
			c.Abort()
			return
		}
		if session == nil || session.UserID != userID {
			resp.Fail(c.Writer, resp.FromCode(ecode.SessionInvalid))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = ctxutil.SetUserID(ctx, userID)
		ctx = ctxutil.SetUserEmail(ctx, securityjwt.GetPayloadString(claims, "email"))
		ctx = ctxutil.SetSessionID(ctx, sessionID)
		ctx = ctxutil.SetToken(ctx, token)
		c.Request = c.Request.WithContext(ctx)

		c.Set(consts.UserKey, userID)
		c.Set(consts.SessionKey, sessionID)
		c.Set("roles", securityjwt.GetRolesFromToken(claims))
		c.Set("permissions", securityjwt.GetPermissionsFromToken(claims))

		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	header := c.GetHeader(consts.AuthorizationKey)
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, consts.BearerKey) {
		return ""
	}
	return strings.TrimPrefix(header, consts.BearerKey)
}

// GetCurrentUserID retrieves the authenticated user ID from the context.
func GetCurrentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(consts.UserKey)
	return userID, userID != ""
}

// GetCurrentSessionID retrieves the validated session ID from the context.
func GetCurrentSessionID(c *gin.Context) (string, bool) {
	sessionID := c.GetString(consts.SessionKey)
	return sessionID, sessionID != ""
}

// GetCurrentPermissions retrieves the token's permission claims.
func GetCurrentPermissions(c *gin.Context) []string {
	if perms, ok := c.Get("permissions"); ok {
		if list, ok := perms.([]string); ok {
			return list
		}
	}
	return nil
}

// GetCurrentRoles retrieves the token's role claims.
func GetCurrentRoles(c *gin.Context) []string {
	if roles, ok := c.Get("roles"); ok {
		if list, ok := roles.([]string); ok {
			return list
		}
	}
	return nil
}
