package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"sakanly/config"
	"sakanly/store"
	"sakanly/utils"
)

// Protected validates the bearer token and loads the user and its
// organization id into locals. Everything behind it is tenant-scoped.
func Protected(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"ok":    false,
					"error": "Invalid authorization format",
				})
			}
			token = tokenParts[1]
		} else {
			token = c.Cookies("access_token")
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"ok":    false,
					"error": "Authorization required",
				})
			}
		}

		claims, err := utils.ParseJWTToken(token, []byte(config.AppConfig.JWTSecret))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Invalid or expired token",
			})
		}

		user, err := st.FindUser(c.Context(), claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "User not found",
			})
		}
		if !user.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"ok":    false,
				"error": "Account is not active",
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}
