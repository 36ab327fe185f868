package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"sakanly/config"
	"sakanly/models"
	"sakanly/store"
	"sakanly/utils"
)

type AuthController struct {
	store  store.Store
	logger *logrus.Entry
}

func NewAuthController(st store.Store, logger *logrus.Logger) *AuthController {
	return &AuthController{
		store:  st,
		logger: logger.WithField("component", "auth_controller"),
	}
}

// Register creates a new organization and its owner account
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input struct {
		OrgName  string `json:"org_name" validate:"required,max=200"`
		Name     string `json:"name" validate:"required,max=200"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if _, err := ac.store.FindUserByEmail(c.Context(), input.Email); err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "An account with this email already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	var user models.User
	err = ac.store.Transaction(c.Context(), func(tx store.Store) error {
		org := models.Organization{Name: input.OrgName}
		if err := tx.CreateOrganization(c.Context(), &org); err != nil {
			return err
		}
		user = models.User{
			OrgID:        org.ID,
			Name:         input.Name,
			Email:        input.Email,
			PasswordHash: string(hash),
			Role:         "owner",
			IsActive:     true,
		}
		return tx.CreateUser(c.Context(), &user)
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(user))
}

// Login verifies credentials and issues access/refresh tokens
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, err := ac.store.FindUserByEmail(c.Context(), input.Email)
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to log in", err)
	}
	if !user.IsActive {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Account is not active", nil)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials", nil)
	}

	access, refresh, err := utils.GenerateJWTToken(user.ID, user.OrgID, []byte(config.AppConfig.JWTSecret))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to issue tokens", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          user,
	}))
}

// Me returns the authenticated user
func (ac *AuthController) Me(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(currentUser(c)))
}
