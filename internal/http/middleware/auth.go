package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/shared/authtoken"
)

const (
	ctxKeyUserID   = "auth_user_id"
	ctxKeyUserRole = "auth_user_role"
)

// Auth parses a Bearer token if present and stores the identity on the
// context. It never rejects on its own; RequireAuth / RequireAdmin do that.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.Next()
			return
		}

		claims, err := authtoken.Parse(jwtSecret, parts[1])
		if err != nil {
			c.Next()
			return
		}

		c.Set(ctxKeyUserID, claims.UserID)
		c.Set(ctxKeyUserRole, claims.Role)
		c.Next()
	}
}

type Identity struct {
	UserID string
	Role   string
}

func CurrentUser(c *gin.Context) (Identity, bool) {
	id, ok := c.Get(ctxKeyUserID)
	if !ok {
		return Identity{}, false
	}
	role, _ := c.Get(ctxKeyUserRole)
	uid, _ := id.(string)
	r, _ := role.(string)
	if uid == "" {
		return Identity{}, false
	}
	return Identity{UserID: uid, Role: r}, true
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success":    false,
			"message":    "authentication required",
			"request_id": GetRequestID(c),
		})
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":    false,
				"message":    "authentication required",
				"request_id": GetRequestID(c),
			})
			return
		}
		if u.Role != authtoken.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success":    false,
				"message":    "admin access required",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
