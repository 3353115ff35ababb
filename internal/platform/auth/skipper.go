package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are route patterns reachable without a session: infrastructure
// endpoints, the signup/login entry points and the static slot list.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/db":            true,
	"/metrics":              true,
	"/api/v1/auth/signup":   true,
	"/api/v1/auth/login":    true,
	"/api/v1/booking/slots": true,
}

// AuthSkipper returns true for requests whose matched route is public.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
