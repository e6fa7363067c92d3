package middlewares

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

const callerKey = "caller_id"

// TokenAuth extracts the caller identifier for downstream handlers. A bearer
// token signed with JWT_SECRET is the normal path (the "sub" claim carries
// the identifier); the X-User-Id header is honored as a development
// fallback. Token issuance lives in the accounts service, not here.
func TokenAuth() gin.HandlerFunc {
	secret := []byte(os.Getenv("JWT_SECRET"))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			raw := strings.TrimPrefix(header, "Bearer ")
			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
				return
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing subject"})
				return
			}
			c.Set(callerKey, sub)
			c.Next()
			return
		}

		if id := c.GetHeader("X-User-Id"); id != "" {
			c.Set(callerKey, id)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
	}
}

// CallerID returns the identifier TokenAuth stored on the context.
func CallerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
