package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/store"
	"sakanly/utils"
)

type ProviderController struct {
	store  store.Store
	cipher *utils.Cipher
	logger *logrus.Entry
}

func NewProviderController(st store.Store, cipher *utils.Cipher, logger *logrus.Logger) *ProviderController {
	return &ProviderController{
		store:  st,
		cipher: cipher,
		logger: logger.WithField("component", "provider_controller"),
	}
}

type providerInput struct {
	Channel  string `json:"channel" validate:"required,oneof=whatsapp email"`
	IsActive bool   `json:"is_active"`

	FromName     string `json:"from_name"`
	FromEmail    string `json:"from_email" validate:"omitempty,email"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`

	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"imap_password"`
	IMAPEncryption string `json:"imap_encryption" validate:"omitempty,oneof=ssl starttls none"`
	IMAPMailbox    string `json:"imap_mailbox"`

	WhatsAppBaseURL string `json:"whatsapp_base_url"`
	WhatsAppPhoneID string `json:"whatsapp_phone_id"`
	WhatsAppToken   string `json:"whatsapp_token"`
}

func (pc *ProviderController) applyInput(p *models.ChannelProvider, input providerInput) error {
	p.Channel = input.Channel
	p.IsActive = input.IsActive
	p.FromName = input.FromName
	p.FromEmail = input.FromEmail
	p.SMTPHost = input.SMTPHost
	p.SMTPPort = input.SMTPPort
	p.SMTPUsername = input.SMTPUsername
	p.IMAPHost = input.IMAPHost
	p.IMAPPort = input.IMAPPort
	p.IMAPUsername = input.IMAPUsername
	p.IMAPEncryption = input.IMAPEncryption
	p.IMAPMailbox = input.IMAPMailbox
	p.WhatsAppBaseURL = input.WhatsAppBaseURL
	p.WhatsAppPhoneID = input.WhatsAppPhoneID

	// Secrets are write-only: an empty input keeps the stored value
	if input.SMTPPassword != "" {
		encrypted, err := pc.cipher.Encrypt(input.SMTPPassword)
		if err != nil {
			return err
		}
		p.SMTPPassword = encrypted
	}
	if input.IMAPPassword != "" {
		encrypted, err := pc.cipher.Encrypt(input.IMAPPassword)
		if err != nil {
			return err
		}
		p.IMAPPassword = encrypted
	}
	if input.WhatsAppToken != "" {
		encrypted, err := pc.cipher.Encrypt(input.WhatsAppToken)
		if err != nil {
			return err
		}
		p.WhatsAppToken = encrypted
	}
	return nil
}

func (pc *ProviderController) CreateProvider(c *fiber.Ctx) error {
	user := currentUser(c)

	var input providerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	provider := models.ChannelProvider{OrgID: user.OrgID}
	if err := pc.applyInput(&provider, input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt credentials", err)
	}

	if err := pc.store.CreateProvider(c.Context(), &provider); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "An active provider already exists for this channel", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create provider", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(provider))
}

func (pc *ProviderController) GetProviders(c *fiber.Ctx) error {
	user := currentUser(c)

	providers, err := pc.store.FindProviders(c.Context(), user.OrgID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch providers", err)
	}
	return c.JSON(utils.SuccessResponse(providers))
}

func (pc *ProviderController) GetProvider(c *fiber.Ctx) error {
	user := currentUser(c)

	provider, err := pc.store.FindProvider(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Provider not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch provider", err)
	}
	return c.JSON(utils.SuccessResponse(provider))
}

func (pc *ProviderController) UpdateProvider(c *fiber.Ctx) error {
	user := currentUser(c)

	provider, err := pc.store.FindProvider(c.Context(), user.OrgID, utils.ParseUint(c.Params("id")))
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Provider not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch provider", err)
	}

	var input providerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	input.Channel = provider.Channel // channel is fixed at creation
	if err := pc.applyInput(provider, input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt credentials", err)
	}

	if err := pc.store.SaveProvider(c.Context(), provider); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "An active provider already exists for this channel", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update provider", err)
	}
	return c.JSON(utils.SuccessResponse(provider))
}
