// Package apperr defines the error taxonomy services return and its mapping
// onto HTTP status codes. Services wrap these sentinels with %w so handlers
// stay free of status logic.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrSessionExpired  = errors.New("session expired")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage failure")
)

// Status maps a service error onto its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrSessionExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Fiber converts a service error into the fiber error the default handler
// renders.
func Fiber(err error) *fiber.Error {
	return fiber.NewError(Status(err), err.Error())
}
