package controller

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"schoolcrm_backend/internals/features/users/auth/service"
	"schoolcrm_backend/internals/features/users/dto"
	helper "schoolcrm_backend/internals/helpers"
)

var validate = validator.New()

type AuthController struct {
	Svc          *service.AuthService
	SecureCookie bool
}

func NewAuthController(svc *service.AuthService, secureCookie bool) *AuthController {
	return &AuthController{Svc: svc, SecureCookie: secureCookie}
}

type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=256"`
}

// POST /api/auth/login
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Login = strings.TrimSpace(req.Login)
	if err := validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	res, err := ac.Svc.Login(c.UserContext(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthFailed) {
			return helper.JsonError(c, fiber.StatusUnauthorized, service.ErrAuthFailed.Error())
		}
		log.Printf("[AUTH] login %s failed: %v", req.Login, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Internal Server Error")
	}

	c.Cookie(&fiber.Cookie{
		Name:     helper.AccessTokenCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HTTPOnly: true,
		Secure:   ac.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return helper.JsonOK(c, "Login successful", fiber.Map{
		"access_token": res.Token,
		"token_type":   "Bearer",
		"expires_at":   res.ExpiresAt,
		"user":         dto.FromModel(res.User),
	})
}

// POST /api/auth/logout
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	if err := ac.Svc.Logout(c.UserContext(), helper.GetRawAccessToken(c)); err != nil {
		log.Printf("[AUTH] logout failed: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to log out")
	}
	c.Cookie(&fiber.Cookie{
		Name:     helper.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   ac.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return helper.JsonOK(c, "Logged out", nil)
}

// GET /api/auth/me. The auth middleware already reloaded the user and
// recomputed the role of an external account.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	u, err := helper.CurrentUser(c)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", dto.FromModel(u))
}
