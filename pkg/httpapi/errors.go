package httpapi

import (
	"github.com/gofiber/fiber/v2"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
)

// respondError maps repository and pipeline errors onto HTTP responses.
// Internal failure detail stays in the logs, not in the response body.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case xperrors.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Resource not found",
			"code":  "ERR_NOT_FOUND",
		})
	case xperrors.IsInvalidState(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_STATE",
		})
	case xperrors.IsConflict(err), xperrors.IsAlreadyExists(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Resource conflict",
			"code":  "ERR_CONFLICT",
		})
	case xperrors.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_VALIDATION",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
			"code":  "ERR_INTERNAL",
		})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  "ERR_VALIDATION",
	})
}

func conflict(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"error": msg,
		"code":  "ERR_INVALID_STATE",
	})
}
