package route

import (
	"github.com/gofiber/fiber/v2"

	"schoolcrm_backend/internals/features/users/controller"
)

func UsersRoutes(api fiber.Router, ctl *controller.UsersController) {
	api.Get("/users", ctl.List)
}
