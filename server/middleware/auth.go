package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/smokedb/errors"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (map[string]any, error)

// ClaimsKey is the Gin context key holding validated claims.
const ClaimsKey = "auth.claims"

// Auth returns a Gin middleware that requires a valid bearer token. Claims
// are stored in the Gin context under ClaimsKey.
func Auth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}
		claims, err := validate(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, reason string) {
	err := apperrors.Unauthorized(reason)
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
