package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/birthday-service/internal/api/dto"
	"github.com/spec-kit/birthday-service/internal/service"
	apperrors "github.com/spec-kit/birthday-service/pkg/util"
)

// AccountsHandler serves registration and login.
type AccountsHandler struct {
	auth *service.AuthService
}

func NewAccountsHandler(auth *service.AuthService) *AccountsHandler {
	return &AccountsHandler{auth: auth}
}

// Register POST /auth/register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	account, err := h.auth.Register(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}

// Login POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	token, expiresAt, account, err := h.auth.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   dto.NewAccountResponse(account),
	}})
}
