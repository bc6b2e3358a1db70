package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sweetshop/sweet-shop-api/internal/core/domain"
)

// RequireRole gates a route on domain.Authorize. It must run after Auth.
func RequireRole(role domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, _ := IdentityFrom(c)
			if err := domain.Authorize(identity, role); err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					return echo.NewHTTPError(http.StatusForbidden, "Access denied. Admin only.").SetInternal(err)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken).SetInternal(err)
			}
			return next(c)
		}
	}
}
