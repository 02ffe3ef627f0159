package contact

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abelsonz/rideunited/internal/shared/apperr"
)

// RegisterRoutes wires the public contact-form endpoint.
func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/", func(c *fiber.Ctx) error {
		var body struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Subject string `json:"subject"`
			Message string `json:"message"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, err := svc.Create(c.Context(), body.Name, body.Email, body.Subject, body.Message); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "Message sent successfully"})
	})
}

// RegisterAdminRoutes wires the submission inbox behind the admin
// session middleware.
func RegisterAdminRoutes(r fiber.Router, svc *Service, adminMiddleware fiber.Handler) {
	r.Get("/submissions", adminMiddleware, func(c *fiber.Ctx) error {
		subs, err := svc.List(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"submissions": subs})
	})

	r.Post("/submissions/:id/read", adminMiddleware, func(c *fiber.Ctx) error {
		if err := svc.MarkRead(c.Context(), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}
