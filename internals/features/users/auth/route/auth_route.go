// file: internals/features/users/auth/route/auth_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	controller "schoolcrm_backend/internals/features/users/auth/controller"
	rateLimiter "schoolcrm_backend/internals/middlewares"
)

// AuthRoutes mounts /api/auth. requireAuth guards everything but login.
func AuthRoutes(api fiber.Router, ctl *controller.AuthController, requireAuth fiber.Handler) {
	auth := api.Group("/auth")

	auth.Post("/login", rateLimiter.LoginRateLimiter(), ctl.Login)
	auth.Post("/logout", requireAuth, ctl.Logout)
	auth.Get("/me", requireAuth, ctl.Me)
}
