package chat

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/abelsonz/rideunited/internal/auth"
	"github.com/abelsonz/rideunited/internal/shared/apperr"
)

// IdentityVerifier resolves a user access token to its account.
type IdentityVerifier interface {
	Identify(ctx context.Context, accessToken string) (auth.User, error)
}

// RegisterRoutes wires the per-ride chat endpoints. Posting requires a
// verified user token in the body; deletion takes either an admin
// session or a bearer token from the message author.
func RegisterRoutes(r fiber.Router, svc *Service, identities IdentityVerifier, isAdmin func(*fiber.Ctx) bool) {
	r.Get("/:rideId", func(c *fiber.Ctx) error {
		msgs, err := svc.Messages(c.Context(), c.Params("rideId"))
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"messages": msgs})
	})

	r.Post("/:rideId", func(c *fiber.Ctx) error {
		var body struct {
			Message   string `json:"message"`
			UserToken string `json:"userToken"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.Message == "" || body.UserToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "message and user token are required")
		}

		user, err := identities.Identify(c.Context(), body.UserToken)
		if err != nil {
			return apperr.Fiber(err)
		}

		msg, err := svc.Post(c.Context(), c.Params("rideId"), body.Message, Author{
			UserID:   user.ID,
			UserName: user.DisplayName(),
		})
		if err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true, "message": msg})
	})

	r.Delete("/:rideId/:messageId", func(c *fiber.Ctx) error {
		caller := Caller{IsAdmin: isAdmin(c)}
		if !caller.IsAdmin {
			token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
			if token != "" {
				if user, err := identities.Identify(c.Context(), token); err == nil {
					caller.UserID = user.ID
				}
			}
		}
		if !caller.IsAdmin && caller.UserID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		if err := svc.Delete(c.Context(), c.Params("rideId"), c.Params("messageId"), caller); err != nil {
			return apperr.Fiber(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}
