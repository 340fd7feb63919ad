package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"shopapi/internal/config"
	"shopapi/internal/domain/model"
)

const (
	CtxCartOwnerKey = "cart_owner" // model.CartOwner

	// SessionKeyHeader carries the anonymous cart token. The client stores
	// it and replays it on every cart request; no server-side session state.
	SessionKeyHeader = "X-Session-Key"
)

// CartOwner resolves who owns the cart for this request: a valid bearer
// token wins, then the session-key header, and failing both a fresh key is
// issued and echoed back on the response.
func CartOwner(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID, role, ok := parseBearer(c, cfg.JWTSecret); ok {
				c.Set(CtxUserIDKey, userID)
				c.Set(CtxUserRoleKey, role)
				c.Set(CtxCartOwnerKey, model.CartOwner{UserID: userID})
				return next(c)
			}

			key := c.Request().Header.Get(SessionKeyHeader)
			if key == "" {
				key = uuid.NewString()
			}
			c.Response().Header().Set(SessionKeyHeader, key)
			c.Set(CtxCartOwnerKey, model.CartOwner{SessionKey: key})

			return next(c)
		}
	}
}

// OwnerFromContext returns the resolved cart owner.
func OwnerFromContext(c echo.Context) (model.CartOwner, bool) {
	owner, ok := c.Get(CtxCartOwnerKey).(model.CartOwner)
	return owner, ok
}
