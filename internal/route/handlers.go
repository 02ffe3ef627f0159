package route

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/abelsonz/rideunited/internal/shared/apperr"
)

// RegisterRoutes wires the public route endpoints. isAdmin reports
// whether the request carries a valid admin session, which widens edit
// permissions on PUT.
func RegisterRoutes(r fiber.Router, svc *Service, isAdmin func(*fiber.Ctx) bool) {
	r.Post("/", func(c *fiber.Ctx) error {
		sub, cleanup, err := parseSubmission(c)
		if err != nil {
			return apperr.Fiber(err)
		}
		defer cleanup()

		created, err := svc.Submit(c.Context(), sub)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Route submitted for review",
			"routeId": created.ID,
		})
	})

	r.Get("/", func(c *fiber.Ctx) error {
		routes, err := svc.Approved(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"routes": routes})
	})

	r.Get("/user/:userId", func(c *fiber.Ctx) error {
		routes, err := svc.ByOwner(c.Context(), c.Params("userId"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"routes": routes})
	})

	r.Put("/:id", func(c *fiber.Ctx) error {
		sub, cleanup, err := parseSubmission(c)
		if err != nil {
			return apperr.Fiber(err)
		}
		defer cleanup()

		caller := Caller{UserID: sub.OwnerID, IsAdmin: isAdmin(c)}
		updated, err := svc.Update(c.Context(), c.Params("id"), sub, caller)
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "route": updated})
	})
}

// RegisterAdminRoutes wires the moderation endpoints behind the admin
// session middleware.
func RegisterAdminRoutes(r fiber.Router, svc *Service, adminMiddleware fiber.Handler) {
	r.Get("/pending", adminMiddleware, func(c *fiber.Ctx) error {
		routes, err := svc.Pending(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"routes": routes})
	})

	r.Get("/approved", adminMiddleware, func(c *fiber.Ctx) error {
		routes, err := svc.ApprovedForReview(c.Context())
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"routes": routes})
	})

	r.Post("/:id/approve", adminMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Approve(c.Context(), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "Route approved"})
	})

	r.Post("/:id/reject", adminMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Reject(c.Context(), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "Route rejected"})
	})

	r.Delete("/:id", adminMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "Route deleted"})
	})
}

// parseSubmission reads the multipart route form. The returned cleanup
// closes the image file when one was attached.
func parseSubmission(c *fiber.Ctx) (Submission, func(), error) {
	cleanup := func() {}
	sub := Submission{
		RouteName:        c.FormValue("routeName"),
		Description:      c.FormValue("description"),
		LeaderName:       c.FormValue("leaderName"),
		StartingLocation: c.FormValue("startingLocation"),
		StartTime:        c.FormValue("startTime"),
		OwnerID:          c.FormValue("userId"),
	}

	if raw := c.FormValue("waypoints"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sub.Waypoints); err != nil {
			return Submission{}, cleanup, fmt.Errorf("waypoints must be valid JSON: %w", apperr.ErrValidation)
		}
	}
	if raw := c.FormValue("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sub.Tags); err != nil {
			return Submission{}, cleanup, fmt.Errorf("tags must be valid JSON: %w", apperr.ErrValidation)
		}
	}

	header, err := c.FormFile("image")
	if err == nil && header != nil && header.Size > 0 {
		f, err := header.Open()
		if err != nil {
			return Submission{}, cleanup, fmt.Errorf("open image upload: %w", apperr.ErrValidation)
		}
		cleanup = func() { _ = f.Close() }
		sub.Image = &ImageUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        f,
		}
	}
	return sub, cleanup, nil
}
