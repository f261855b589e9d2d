package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// localsUsername is the c.Locals key holding the authenticated username.
const localsUsername = "username"

// TokenValidator resolves a bearer token to a username.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" token.
func RequireAuth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme, token, ok := strings.Cut(strings.TrimSpace(c.Get(fiber.HeaderAuthorization)), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		username, err := tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return err
		}

		c.Locals(localsUsername, username)
		return c.Next()
	}
}

// Username returns the user set by RequireAuth, or "".
func Username(c *fiber.Ctx) string {
	name, _ := c.Locals(localsUsername).(string)
	return name
}
