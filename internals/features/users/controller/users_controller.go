package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"schoolcrm_backend/internals/directory"
	"schoolcrm_backend/internals/features/users/dto"
	helper "schoolcrm_backend/internals/helpers"
)

type UsersController struct {
	Dir directory.Directory
}

func NewUsersController(dir directory.Directory) *UsersController {
	return &UsersController{Dir: dir}
}

// GET /api/users?search=
func (uc *UsersController) List(c *fiber.Ctx) error {
	if _, err := helper.CurrentUser(c); err != nil {
		return err
	}
	users, err := uc.Dir.ListUsers(c.UserContext(), strings.TrimSpace(c.Query("search")))
	if err != nil {
		log.Printf("[USERS] list failed: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load users")
	}
	return helper.JsonList(c, "ok", dto.FromModels(users))
}
