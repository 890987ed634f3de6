package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
)

// RequireRoles lets the request through when the principal holds any of
// the allowed capabilities. Superusers always pass.
func RequireRoles(allowed ...policy.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := Principal(c)
		if !p.Authenticated() {
			return apperr.Unauthenticated("authentication required")
		}
		if p.IsSuperuser() {
			return c.Next()
		}
		for _, want := range allowed {
			if p.Has(want) {
				return c.Next()
			}
		}
		return apperr.Forbidden("forbidden: insufficient role")
	}
}
