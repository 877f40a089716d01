// Package ctxutil carries request-scoped metadata (trace ID, authenticated
// principal, request origin) across handler, service, and repository layers.
package ctxutil

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nebulium/authcore/consts"
)

const (
	ginContextKey = consts.GinContextKey
	userIDKey     = consts.UserKey
	userEmailKey  = consts.UserEmailKey
	sessionIDKey  = consts.SessionKey
	tokenKey      = consts.TokenKey
	clientIPKey   = "client_ip"
	userAgentKey  = "user_agent"

	// TraceIDKey global trace id
	TraceIDKey = consts.TraceKey
)

type ctxKey string

// FromGinContext extracts the context.Context from *gin.Context.
func FromGinContext(c *gin.Context) context.Context {
	return c.Request.Context()
}

// GetGinContext extracts *gin.Context from context.Context if it exists.
func GetGinContext(ctx context.Context) (*gin.Context, bool) {
	if c, ok := ctx.Value(ctxKey(ginContextKey)).(*gin.Context); ok {
		return c, ok
	}
	return nil, false
}

// WithGinContext returns a context.Context that embeds the *gin.Context.
func WithGinContext(ctx context.Context, c *gin.Context) context.Context {
	return context.WithValue(ctx, ctxKey(ginContextKey), c)
}

// GetValue retrieves a value from the context.
func GetValue(ctx context.Context, key string) any {
	if c, ok := GetGinContext(ctx); ok {
		if val, exists := c.Get(key); exists {
			return val
		}
	}
	return ctx.Value(ctxKey(key))
}

// SetValue sets a value to the context.
func SetValue(ctx context.Context, key string, val any) context.Context {
	if c, ok := GetGinContext(ctx); ok {
		c.Set(key, val)
		return ctx
	}
	return context.WithValue(ctx, ctxKey(key), val)
}

func getString(ctx context.Context, key string) string {
	if val, ok := GetValue(ctx, key).(string); ok {
		return val
	}
	return ""
}

// GetTraceID gets the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// EnsureTraceID ensures that a trace ID exists in the context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if id := GetTraceID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return SetValue(ctx, TraceIDKey, id), id
}

// SetUserID sets the authenticated user ID.
func SetUserID(ctx context.Context, id string) context.Context {
	return SetValue(ctx, userIDKey, id)
}

// GetUserID gets the authenticated user ID.
func GetUserID(ctx context.Context) string {
	return getString(ctx, userIDKey)
}

// SetUserEmail sets the authenticated user email.
func SetUserEmail(ctx context.Context, email string) context.Context {
	return SetValue(ctx, userEmailKey, email)
}

// GetUserEmail gets the authenticated user email.
func GetUserEmail(ctx context.Context) string {
	return getString(ctx, userEmailKey)
}

// SetSessionID sets the backing session ID.
func SetSessionID(ctx context.Context, id string) context.Context {
	return SetValue(ctx, sessionIDKey, id)
}

// GetSessionID gets the backing session ID.
func GetSessionID(ctx context.Context) string {
	return getString(ctx, sessionIDKey)
}

// SetToken sets the raw bearer token.
func SetToken(ctx context.Context, token string) context.Context {
	return SetValue(ctx, tokenKey, token)
}

// GetToken gets the raw bearer token.
func GetToken(ctx context.Context) string {
	return getString(ctx, tokenKey)
}

// SetClientIP sets the request origin IP.
func SetClientIP(ctx context.Context, ip string) context.Context {
	return SetValue(ctx, clientIPKey, ip)
}

// GetClientIP gets the request origin IP.
func GetClientIP(ctx context.Context) string {
	return getString(ctx, clientIPKey)
}

// SetUserAgent sets the request client descriptor.
func SetUserAgent(ctx context.Context, ua string) context.Context {
	return SetValue(ctx, userAgentKey, ua)
}

// GetUserAgent gets the request client descriptor.
func GetUserAgent(ctx context.Context) string {
	return getString(ctx, userAgentKey)
}
