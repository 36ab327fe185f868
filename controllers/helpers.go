package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"sakanly/models"
	"sakanly/services"
	"sakanly/utils"
)

func currentUser(c *fiber.Ctx) *models.User {
	return c.Locals("user").(*models.User)
}

// serviceError maps engine error kinds to HTTP statuses
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrSequenceNotFound),
		errors.Is(err, services.ErrSequenceRunNotFound),
		errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, services.ErrLeadNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)

	case errors.Is(err, services.ErrSequenceInvalidSteps),
		errors.Is(err, services.ErrTemplateChannelMismatch),
		errors.Is(err, services.ErrTemplateUnknownVariable),
		errors.Is(err, services.ErrTemplateSubjectForbidden),
		errors.Is(err, services.ErrTemplateSubjectRequired):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, err.Error(), nil)

	case errors.Is(err, services.ErrSequenceNotActive),
		errors.Is(err, services.ErrSequenceAlreadyRunning):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)

	case errors.Is(err, services.ErrProviderNotConfigured):
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, err.Error(), nil)

	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "internal error", err)
	}
}
