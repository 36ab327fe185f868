package controller

import (
	"errors"
	"strconv"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/store"
	"sakanly/utils"
)

type LeadController struct {
	store  store.Store
	logger *logrus.Entry
}

func NewLeadController(st store.Store, logger *logrus.Logger) *LeadController {
	return &LeadController{
		store:  st,
		logger: logger.WithField("component", "lead_controller"),
	}
}

type leadInput struct {
	FullName     string `json:"full_name" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"omitempty,max=30"`
	Email        string `json:"email" validate:"omitempty,email"`
	Wilaya       string `json:"wilaya" validate:"omitempty,max=100"`
	Commune      string `json:"commune" validate:"omitempty,max=100"`
	BudgetMin    *int64 `json:"budget_min"`
	BudgetMax    *int64 `json:"budget_max"`
	PropertyType string `json:"property_type" validate:"omitempty,oneof=apartment villa land commercial"`
	Status       string `json:"status" validate:"omitempty,oneof=new contacted qualified closed lost"`
	Source       string `json:"source" validate:"omitempty,max=50"`
	OwnerID      *uint  `json:"owner_id"`
}

// CreateLead creates a new lead with validation
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	user := currentUser(c)

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Email != "" {
		if err := checkmail.ValidateFormat(input.Email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
		}
	}

	lead := models.Lead{
		OrgID:        user.OrgID,
		OwnerID:      input.OwnerID,
		FullName:     input.FullName,
		Phone:        input.Phone,
		Email:        strings.ToLower(input.Email),
		Wilaya:       input.Wilaya,
		Commune:      input.Commune,
		BudgetMin:    input.BudgetMin,
		BudgetMax:    input.BudgetMax,
		PropertyType: input.PropertyType,
		Source:       input.Source,
	}
	if input.Status != "" {
		lead.Status = input.Status
	}

	if err := lc.store.CreateLead(c.Context(), &lead); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads returns a paginated list of leads with filters
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	user := currentUser(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	leads, total, err := lc.store.FindLeads(c.Context(), user.OrgID, store.LeadFilter{
		Status: c.Query("status"),
		Wilaya: c.Query("wilaya"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	user := currentUser(c)

	lead, err := lc.store.FindLead(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	user := currentUser(c)

	lead, err := lc.store.FindLead(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Email != "" {
		if err := checkmail.ValidateFormat(input.Email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
		}
	}

	lead.FullName = input.FullName
	lead.Phone = input.Phone
	lead.Email = strings.ToLower(input.Email)
	lead.Wilaya = input.Wilaya
	lead.Commune = input.Commune
	lead.BudgetMin = input.BudgetMin
	lead.BudgetMax = input.BudgetMax
	lead.PropertyType = input.PropertyType
	lead.OwnerID = input.OwnerID
	if input.Status != "" {
		lead.Status = input.Status
	}
	if input.Source != "" {
		lead.Source = input.Source
	}

	if err := lc.store.SaveLead(c.Context(), lead); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	user := currentUser(c)

	err := lc.store.DeleteLead(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}
