// helpers/token.go
package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	userModel "schoolcrm_backend/internals/features/users/model"
)

const (
	LocRawToken    = "raw_token"
	LocCurrentUser = "current_user"
	LocUserID      = "user_id"
	LocUserRole    = "userRole"

	AccessTokenCookie = "access_token"
)

// ExtractBearerToken reads "Authorization: Bearer <jwt>", falling back to the
// access_token cookie. Returns "" when neither is present or well-formed.
func ExtractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if auth == "" {
		if v := strings.TrimSpace(c.Cookies(AccessTokenCookie)); v != "" {
			return strings.Trim(v, "\"'")
		}
		return ""
	}
	fields := strings.Fields(auth)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return strings.Trim(strings.TrimSpace(fields[1]), "\"'")
}

// GetRawAccessToken returns the token the auth middleware accepted.
func GetRawAccessToken(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocRawToken).(string); ok {
		return v
	}
	return ExtractBearerToken(c)
}

// SetCurrentUser stores the freshly reloaded user for the handlers.
func SetCurrentUser(c *fiber.Ctx, raw string, u *userModel.UserModel) {
	c.Locals(LocRawToken, raw)
	c.Locals(LocCurrentUser, u)
	c.Locals(LocUserID, u.ID.String())
	c.Locals(LocUserRole, u.Role)
}

// CurrentUser returns the authenticated user or a 401 fiber error.
func CurrentUser(c *fiber.Ctx) (*userModel.UserModel, error) {
	u, ok := c.Locals(LocCurrentUser).(*userModel.UserModel)
	if !ok || u == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	return u, nil
}
