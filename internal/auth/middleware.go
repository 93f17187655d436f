package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const identityKey = "auth_identity"

// Middleware authenticates every request and stores the outcome in the
// gin context. Anonymous outcomes pass through so public endpoints and
// per-route guards can still run; only CSRF failure aborts here.
func Middleware(a *Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := a.Authenticate(c.Request)
		if err != nil {
			if errors.Is(err, ErrCSRFFailed) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"detail": "CSRF validation failed",
				})
				return
			}

			logger.Error("Authentication failed unexpectedly",
				slog.String("path", c.Request.URL.Path),
				slog.Any("error", err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"detail": "unexpected error",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireUser guards protected routes: anonymous identities get 401
// with their reason code.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFromContext(c)
		if !identity.Authenticated() {
			reason := identity.Reason
			if reason == "" {
				reason = ReasonMissingToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "authentication required",
				"reason": reason,
			})
			return
		}
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by Middleware
func IdentityFromContext(c *gin.Context) Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{Source: SourceNone, Reason: ReasonMissingToken}
	}
	identity, ok := v.(Identity)
	if !ok {
		return Identity{Source: SourceNone, Reason: ReasonMissingToken}
	}
	return identity
}
