package admin

import (
	"github.com/abelsonz/rideunited/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

const tokenHeader = "X-Admin-Token"

// Middleware rejects requests without a live admin session.
func Middleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Verify(c.Context(), c.Get(tokenHeader)); err != nil {
			return apperr.Fiber(err)
		}
		return c.Next()
	}
}

// Check returns a predicate for handlers where admin rights widen
// behavior instead of gating it.
func Check(svc *Service) func(*fiber.Ctx) bool {
	return func(c *fiber.Ctx) bool {
		token := c.Get(tokenHeader)
		if token == "" {
			return false
		}
		return svc.Verify(c.Context(), token) == nil
	}
}
