package middleware

import (
	icuser "github.com/JavierUzcategui/AulaPago/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// RequireAdmin ensures an authenticated administrator; returns JSON 401/403 otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	v := c.Locals(icuser.KeyFromProtected)
	loggedIn := false
	if b, ok := v.(bool); ok {
		loggedIn = b
	}
	if !loggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if isAdmin, ok := c.Locals(icuser.KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "administrator role required",
		})
	}
	return c.Next()
}
