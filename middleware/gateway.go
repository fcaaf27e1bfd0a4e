// middleware/gateway.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware validates the service token forwarded by the
// gateway. Participant identity and roles are resolved upstream; this
// service only verifies the hop.
func GatewayAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("LEDGER_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Fatal("LEDGER_SERVICE_TOKEN is not set, service cannot authenticate the gateway")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.Printf("[GATEWAY_AUTH] invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
