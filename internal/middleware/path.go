package middleware

import (
	"github.com/labstack/echo/v4"
)

// DecodedPath makes the router match on the URL-decoded path. Echo prefers
// URL.RawPath when it is set, which would send "/api%2Fx" to the static
// handler instead of the API dispatcher. Register it with Echo.Pre.
func DecodedPath() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Request().URL.RawPath = ""
			return next(c)
		}
	}
}
