package helper

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// FiberErrorHandler is the app-wide fiber ErrorHandler. A *fiber.Error keeps
// its code and message; anything else becomes a generic 500.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return JsonError(c, fe.Code, fe.Message)
	}
	log.Printf("[ERROR] %s %s: %v", c.Method(), c.OriginalURL(), err)
	return JsonError(c, fiber.StatusInternalServerError, "Internal Server Error")
}
