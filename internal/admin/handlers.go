package admin

import (
	"github.com/abelsonz/rideunited/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}

		token, err := svc.Login(c.Context(), req)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "token": token})
	})
}
