package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/consts"
	"github.com/nebulium/authcore/ecode"
	"github.com/nebulium/authcore/net/resp"
	"github.com/nebulium/authcore/service"
)

// RequireFreshProof demands a current second-factor proof on sensitive
// routes even when the bearer token is valid. The time-based code header
// is tried first, then a backup code. Accounts without a second factor
// pass through.
func RequireFreshProof(mfa *service.MfaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			resp.Fail(c.Writer, resp.FromCode(ecode.AuthRequired))
			c.Abort()
			return
		}
		ctx := c.Request.Context()

		enabled, err := mfa.Enabled(ctx, userID)
		if err != nil {
			resp.Fail(c.Writer, resp.ServerError(ecode.Text(ecode.ServerErr)))
			c.Abort()
			return
		}
		if !enabled {
			c.Next()
			return
		}

		totpCode := c.GetHeader(consts.TwoFactorTokenKey)
		backupCode := c.GetHeader(consts.BackupCodeKey)
		if totpCode == "" && backupCode == "" {
			resp.Fail(c.Writer, resp.FromCode(ecode.TwoFactorRequired))
			c.Abort()
			return
		}

		if totpCode != "" {
			ok, err := mfa.VerifyTotp(ctx, userID, totpCode)
			if err != nil {
				resp.Fail(c.Writer, resp.ServerError(ecode.Text(ecode.ServerErr)))
				c.Abort()
				return
			}
			if ok {
				c.Next()
				return
			}
		}

		if backupCode != "" {
			ok, err := mfa.VerifyAndConsumeBackupCode(ctx, userID, backupCode)
			if err != nil {
				resp.Fail(c.Writer, resp.ServerError(ecode.Text(ecode.ServerErr)))
				c.Abort()
				return
			}
			if ok {
				c.Next()
				return
			}
		}

		resp.Fail(c.Writer, resp.FromCode(ecode.TwoFactorInvalid))
		c.Abort()
	}
}
