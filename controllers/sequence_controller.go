package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sakanly/services"
	"sakanly/utils"
)

type SequenceController struct {
	sequences *services.SequenceService
	logger    *logrus.Entry
}

func NewSequenceController(sequences *services.SequenceService, logger *logrus.Logger) *SequenceController {
	return &SequenceController{
		sequences: sequences,
		logger:    logger.WithField("component", "sequence_controller"),
	}
}

// CreateSequence creates a new draft sequence
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	user := currentUser(c)

	var input services.CreateSequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	seq, err := sc.sequences.Create(c.Context(), user.OrgID, input, user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(seq))
}

// GetSequences lists the organization's sequences, optionally filtered by status
func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	user := currentUser(c)

	sequences, err := sc.sequences.FindAll(c.Context(), user.OrgID, c.Query("status"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(sequences))
}

func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	user := currentUser(c)

	seq, err := sc.sequences.FindOne(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}

// UpdateSequence applies a partial update; omitted fields are left untouched
func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	user := currentUser(c)

	var input services.UpdateSequenceInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	seq, err := sc.sequences.Update(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")), input, user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}

func (sc *SequenceController) ActivateSequence(c *fiber.Ctx) error {
	user := currentUser(c)

	seq, err := sc.sequences.Activate(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")), user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}

func (sc *SequenceController) PauseSequence(c *fiber.Ctx) error {
	user := currentUser(c)

	seq, err := sc.sequences.Pause(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")), user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}

func (sc *SequenceController) ArchiveSequence(c *fiber.Ctx) error {
	user := currentUser(c)

	seq, err := sc.sequences.Archive(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")), user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}

// ReplaceSteps swaps the sequence's full step list
func (sc *SequenceController) ReplaceSteps(c *fiber.Ctx) error {
	user := currentUser(c)

	var input struct {
		Steps []services.StepInput `json:"steps"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	for _, step := range input.Steps {
		if err := utils.ValidateStruct(step); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
		}
	}

	seq, err := sc.sequences.ReplaceSteps(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")), input.Steps)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}
