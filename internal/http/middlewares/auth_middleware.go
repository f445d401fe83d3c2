package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ethlas/builderhub/internal/auth"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (email string, err error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

const ctxClaimEmailKey = "auth.claimEmail"

// RequireAuth gates a route on a valid bearer token. Three outcomes:
// no Authorization header at all is a 403, a malformed header or a
// token that fails verification is a 401, and a verified token puts
// the claimed email on the request context for the handler.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status":  false,
				"message": "A bearer token is required for authentication",
			})
			return
		}

		scheme, raw, ok := strings.Cut(authHeader, " ")

		if !ok || scheme != "Bearer" || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "Not authorized",
			})
			return
		}

		email, err := m.jwt.Verify(strings.TrimSpace(raw))

		if err != nil {
			// A missing secret is a deployment fault, not a bad credential.
			if errors.Is(err, auth.ErrMissingSecret) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":  false,
					"message": "Authentication is not configured",
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "Not authorized",
			})
			return
		}

		c.Set(ctxClaimEmailKey, email)

		c.Next()
	}
}

// ClaimEmailFromContext reads the verified identity stashed by
// RequireAuth. Handlers never re-derive it from the token.
func ClaimEmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxClaimEmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
