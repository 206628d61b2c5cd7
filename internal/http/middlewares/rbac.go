package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through only when the caller holds one of roles.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	msg := "Requires role: " + strings.Join(names, " or ")

	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		abortError(c, http.StatusForbidden, "forbidden", msg)
	}
}
