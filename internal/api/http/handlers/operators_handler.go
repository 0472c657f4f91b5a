package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-core/internal/api/dto"
	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/service"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

// OperatorsHandler manages operator authentication and provisioning.
type OperatorsHandler struct {
	service *service.AuthService
}

// NewOperatorsHandler constructs handler.
func NewOperatorsHandler(authService *service.AuthService) *OperatorsHandler {
	return &OperatorsHandler{service: authService}
}

// Login POST /auth/operators/login.
func (h *OperatorsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	operator, token, expiresAt, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Operator:  dto.OperatorView(operator),
	}})
}

// CreateOperator POST /operators. Admin only (enforced in routing).
func (h *OperatorsHandler) CreateOperator(c *fiber.Ctx) error {
	var req dto.CreateOperatorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	role := req.Role
	if role == "" {
		role = domain.OperatorRoleAgent
	}
	operator, err := h.service.CreateOperator(c.UserContext(), req.Email, req.DisplayName, req.Password, role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.OperatorView(operator)})
}
