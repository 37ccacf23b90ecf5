package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"tempinbox/models"
	"tempinbox/store"
	"tempinbox/utils"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

type AuthController struct {
	accounts *store.AccountStore
	logger   *logrus.Entry
}

func NewAuthController(accounts *store.AccountStore, logger *logrus.Entry) *AuthController {
	return &AuthController{
		accounts: accounts,
		logger:   logger,
	}
}

func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		ac.logger.WithError(err).Error("Failed to hash password")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Server error")
	}

	user, err := ac.accounts.CreateAccount(c.UserContext(), req.Email, string(hashedPassword))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered")
		}
		return respondError(c, ac.logger, err)
	}

	token, err := utils.GenerateJWTToken(user)
	if err != nil {
		ac.logger.WithError(err).Error("Failed to generate token")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	ac.logger.WithField("user_id", user.ID).Info("Account registered")
	return c.JSON(AuthResponse{
		Token: token,
		User:  user.Public(),
	})
}

func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := ac.accounts.FindByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		return respondError(c, ac.logger, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateJWTToken(user)
	if err != nil {
		ac.logger.WithError(err).Error("Failed to generate token")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(AuthResponse{
		Token: token,
		User:  user.Public(),
	})
}

// GetCurrentUser echoes the identity carried by the bearer token.
func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	userID, email := currentUser(c)
	return c.JSON(fiber.Map{
		"user": models.PublicUser{ID: userID, Email: email},
	})
}

func currentUser(c *fiber.Ctx) (uint, string) {
	userID, _ := c.Locals("userID").(uint)
	email, _ := c.Locals("email").(string)
	return userID, email
}
