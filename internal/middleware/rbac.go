package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/octobees/provider-directory/internal/logging"
)

// RequireRole lets the request through when the authenticated role is one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value, ok := c.Get(ContextKeyRole).(string)
			if !ok || value == "" {
				return reject(c, http.StatusForbidden, "missing role")
			}
			if !slices.Contains(roles, value) {
				logging.FromContext(c.Request().Context()).Debug().
					Str("role", value).
					Strs("allowed", roles).
					Msg("role not permitted")
				return reject(c, http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}
