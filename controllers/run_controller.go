package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sakanly/services"
	"sakanly/utils"
)

type RunController struct {
	runs   *services.RunService
	logger *logrus.Entry
}

func NewRunController(runs *services.RunService, logger *logrus.Logger) *RunController {
	return &RunController{
		runs:   runs,
		logger: logger.WithField("component", "run_controller"),
	}
}

// StartRun enrolls the lead into a sequence
func (rc *RunController) StartRun(c *fiber.Ctx) error {
	user := currentUser(c)

	var input struct {
		SequenceID uint `json:"sequence_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	run, err := rc.runs.Start(c.Context(), user.OrgID, utils.ParseUint(c.Params("leadId")), input.SequenceID, user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(run))
}

// StopRun cancels a running run and its pending steps
func (rc *RunController) StopRun(c *fiber.Ctx) error {
	user := currentUser(c)

	run, err := rc.runs.Stop(c.Context(), user.OrgID, utils.ParseUint(c.Params("leadId")), utils.ParseUint(c.Params("id")))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(run))
}

// GetRuns lists a lead's runs newest-first
func (rc *RunController) GetRuns(c *fiber.Ctx) error {
	user := currentUser(c)

	runs, err := rc.runs.List(c.Context(), user.OrgID, utils.ParseUint(c.Params("leadId")))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(runs))
}
