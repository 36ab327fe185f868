package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sakanly/services"
	"sakanly/utils"
)

type TemplateController struct {
	templates *services.TemplateService
	logger    *logrus.Entry
}

func NewTemplateController(templates *services.TemplateService, logger *logrus.Logger) *TemplateController {
	return &TemplateController{
		templates: templates,
		logger:    logger.WithField("component", "template_controller"),
	}
}

func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	user := currentUser(c)

	var input services.TemplateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	tpl, err := tc.templates.Create(c.Context(), user.OrgID, input, user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(tpl))
}

func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	user := currentUser(c)

	templates, err := tc.templates.FindAll(c.Context(), user.OrgID, c.Query("channel"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(templates))
}

func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	user := currentUser(c)

	tpl, err := tc.templates.FindOne(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(tpl))
}

func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	user := currentUser(c)

	var input services.TemplateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	tpl, err := tc.templates.Update(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")), input)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(tpl))
}

func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	user := currentUser(c)

	if err := tc.templates.Delete(c.Context(), user.OrgID, utils.ParseUint(c.Params("id"))); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}
