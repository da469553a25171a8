package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dkuznetsov/authsvc/internal/auth"
	"github.com/gin-gonic/gin"
)

// TokenVerifier is kept small so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccess(token string) (auth.Payload, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

const ctxAccountIDKey = "auth.accountID"

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// RequireUser gates a route on a valid bearer access token. The verified
// payload's account id is stashed on the request context for handlers.
func (m *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "unauthorized", "Missing or invalid access token")
			return
		}

		payload, err := m.jwt.VerifyAccess(raw)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				abortUnauthorized(c, "token_expired", "Access token expired")
				return
			}

			abortUnauthorized(c, "unauthorized", "Invalid access token")
			return
		}

		c.Set(ctxAccountIDKey, payload.ID)

		c.Next()
	}
}

// AccountIDFromContext returns the verified account id stashed by RequireUser.
func AccountIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxAccountIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
