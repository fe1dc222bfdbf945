package middlewares

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"

	"schoolcrm_backend/internals/middlewares/logger"
)

// RequestContext tags each request with an ID and bounds its context.
func RequestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)

		ctx, cancel := context.WithTimeout(c.Context(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		if d := time.Since(start); d > 2*time.Second {
			log.Printf("[REQ] slow id=%s %s %s dur=%s", id, c.Method(), c.OriginalURL(), d)
		}
		return err
	}
}

// SetupMiddlewares installs the global stack in order.
func SetupMiddlewares(app *fiber.App, origins []string, requestTimeout time.Duration) {
	app.Use(RecoveryMiddleware())
	app.Use(RequestContext(requestTimeout))
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware(origins))
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
}
