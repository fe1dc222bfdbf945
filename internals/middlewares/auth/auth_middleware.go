// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"schoolcrm_backend/internals/directory"
	authService "schoolcrm_backend/internals/features/users/auth/service"
	helper "schoolcrm_backend/internals/helpers"
)

// AuthMiddleware verifies the access token, rejects revoked ones and reloads
// the user. External users get their role recomputed against the current
// allow-list on every request.
func AuthMiddleware(tokens *authService.TokenService, authn *authService.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1) Authorization header or access_token cookie
		raw := helper.ExtractBearerToken(c)
		if raw == "" {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized - No token provided")
		}

		// 2) Signature and expiry
		userID, _, err := tokens.Parse(raw)
		if err != nil {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized - Invalid or expired token")
		}

		// 3) Blacklist
		revoked, err := tokens.IsRevoked(c.UserContext(), raw)
		if err != nil {
			log.Println("[ERROR] blacklist lookup:", err)
			return helper.JsonError(c, fiber.StatusInternalServerError, "Internal Server Error")
		}
		if revoked {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized - Token is revoked")
		}

		// 4) Fresh identity
		u, err := authn.RefreshIdentity(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized - User not found")
			}
			log.Println("[ERROR] refresh identity:", err)
			return helper.JsonError(c, fiber.StatusInternalServerError, "Internal Server Error")
		}

		helper.SetCurrentUser(c, raw, u)
		return c.Next()
	}
}
