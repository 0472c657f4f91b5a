package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-core/internal/api/dto"
	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/service"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

// SettingsHandler exposes configuration records.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: settingsService}
}

// ListSettings GET /settings. Optional ?category= filter.
func (h *SettingsHandler) ListSettings(c *fiber.Ctx) error {
	if category := c.Query("category"); category != "" {
		settings, err := h.service.ListByCategory(c.UserContext(), category)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.SettingViews(settings)})
	}
	settings, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingViews(settings)})
}

// PublicSettings GET /settings/public. Unauthenticated.
func (h *SettingsHandler) PublicSettings(c *fiber.Ctx) error {
	settings, err := h.service.ListPublic(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingViews(settings)})
}

// GetSetting GET /settings/:key.
func (h *SettingsHandler) GetSetting(c *fiber.Ctx) error {
	setting, err := h.service.Get(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingView(setting)})
}

// UpdateSetting PUT /settings/:key. Admin only (enforced in routing).
func (h *SettingsHandler) UpdateSetting(c *fiber.Ctx) error {
	var req dto.UpdateSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	setting := &domain.Setting{
		Key:      c.Params("key"),
		Category: req.Category,
		Value:    req.Value,
		Public:   req.Public,
	}
	if err := h.service.Update(c.UserContext(), setting); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingView(setting)})
}
