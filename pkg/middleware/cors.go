package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORSConfig allows the given origins. Credentials (the refresh cookie) are
// allowed unless the origin list is a wildcard.
func CORSConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "POST,GET,DELETE,PUT,OPTIONS",
		AllowHeaders:     "Content-Type,Cache-Control,Pragma,Authorization",
		AllowCredentials: len(origins) > 0 && !slices.Contains(origins, "*"),
	}
}
