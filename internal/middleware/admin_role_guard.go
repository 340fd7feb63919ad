package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"shopapi/internal/domain/model"
)

// AdminRoleGuard runs after AuthJWT and rejects non-admin callers.
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role != string(model.RoleAdmin) {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}
			return next(c)
		}
	}
}
