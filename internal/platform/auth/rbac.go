package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireDepartment checks that the caller belongs to one of the given
// departments. ADMIN always passes.
func RequireDepartment(departments ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident := IdentityFromContext(c.Request().Context())
			if ident == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if ident.Department == "ADMIN" {
				return next(c)
			}
			for _, d := range departments {
				if ident.Department == d {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient department privileges")
		}
	}
}
