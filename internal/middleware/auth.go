package middleware

import (
	"strings"

	"github.com/dimitrije/teamforge/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	UserIDKey = "user_id"
	AdminKey  = "admin"
)

func Auth(jwtService *services.JWTService) drift.HandlerFunc {
	return func(c *drift.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Unauthorized("invalid authorization header format")
			return
		}

		claims, err := jwtService.ValidateAccessToken(parts[1])
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID())
		c.Set(AdminKey, claims.Admin)

		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() drift.HandlerFunc {
	return func(c *drift.Context) {
		if !IsAdmin(c) {
			c.Forbidden("admin token required")
			return
		}
		c.Next()
	}
}

func GetUserID(c *drift.Context) string {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(string); ok {
			return uid
		}
	}
	return ""
}

func IsAdmin(c *drift.Context) bool {
	if v, ok := c.Get(AdminKey); ok {
		if admin, ok := v.(bool); ok {
			return admin
		}
	}
	return false
}
