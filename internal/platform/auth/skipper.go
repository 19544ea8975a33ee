package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. They are infrastructure endpoints.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
