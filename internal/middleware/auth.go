package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
)

const (
	TokenCookie  = "jm_token"
	principalKey = "principal"
)

// PrincipalResolver turns a raw bearer token into a principal.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (policy.Principal, error)
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(r PrincipalResolver) fiber.Handler {
	return auth(r, true)
}

// OptionalAuth resolves a token when one is sent and lets anonymous requests
// through. An invalid token is still rejected.
func OptionalAuth(r PrincipalResolver) fiber.Handler {
	return auth(r, false)
}

func auth(r PrincipalResolver, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFrom(c)
		if token == "" {
			if required {
				return apperr.Unauthenticated("authentication required")
			}
			c.Locals(principalKey, policy.Anonymous())
			return c.Next()
		}

		p, err := r.ResolvePrincipal(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(principalKey, p)
		return c.Next()
	}
}

// tokenFrom reads the Authorization bearer header, falling back to the
// session cookie.
func tokenFrom(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if parts := strings.SplitN(h, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if t := strings.TrimSpace(parts[1]); t != "" {
			return t
		}
	}
	return strings.TrimSpace(c.Cookies(TokenCookie))
}

// Principal returns the request's principal, anonymous when no auth
// middleware ran.
func Principal(c *fiber.Ctx) policy.Principal {
	p, ok := c.Locals(principalKey).(policy.Principal)
	if !ok {
		return policy.Anonymous()
	}
	return p
}
