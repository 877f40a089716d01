package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/net/resp"
	"github.com/nebulium/authcore/security/permission"
	"github.com/nebulium/authcore/service"
	"github.com/nebulium/authcore/structs"
)

// RequirePermission gates the route on the token's resolved permission set.
// Every denial is recorded as a security event so repeated attempts against
// privileged routes show up in the audit log.
func RequirePermission(audit *service.AuditService, required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		set := permission.NewSet(GetCurrentPermissions(c)...)
		if set.Has(required) {
			c.Next()
			return
		}

		recordDenial(c, audit, map[string]string{"required_permission": required})
		resp.Fail(c.Writer, resp.FromCode(ecode.PermissionDenied))
		c.Abort()
	}
}

// RequireRole gates the route on role membership. Denials are recorded the
// same way permission denials are.
func RequireRole(audit *service.AuditService, names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, have := range GetCurrentRoles(c) {
			for _, want := range names {
				if have == want {
					c.Next()
					return
				}
			}
		}

		recordDenial(c, audit, map[string]string{"required_roles": strings.Join(names, ",")})
		resp.Fail(c.Writer, resp.FromCode(ecode.RoleDenied))
		c.Abort()
	}
}

func recordDenial(c *gin.Context, audit *service.AuditService, metadata map[string]string) {
	userID, _ := GetCurrentUserID(c)
	metadata["path"] = c.FullPath()
	audit.Record(c.Request.Context(), &structs.SecurityEvent{
		Type:      structs.EventPermissionDenied,
		Severity:  structs.SeverityMedium,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Metadata:  metadata,
	})
}
