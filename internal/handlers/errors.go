package handlers

import (
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/example/virtanum/internal/services"
)

// serviceError renders a service-layer failure as the API error payload:
// a stable machine-readable code plus a human-readable message.
func serviceError(c *fiber.Ctx, err error) error {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    services.Kind(err),
		"message": err.Error(),
	})
}
