package dto

import (
	"time"

	"github.com/spec-kit/support-core/internal/domain"
)

// UpdateSettingRequest payload.
type UpdateSettingRequest struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Public   bool   `json:"public"`
}

// SettingResponse is the wire shape for one setting.
type SettingResponse struct {
	Key       string    `json:"key"`
	Category  string    `json:"category"`
	Value     string    `json:"value"`
	Public    bool      `json:"public"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingView maps the domain record onto the wire shape.
func SettingView(setting *domain.Setting) SettingResponse {
	return SettingResponse{
		Key:       setting.Key,
		Category:  setting.Category,
		Value:     setting.Value,
		Public:    setting.Public,
		UpdatedAt: setting.UpdatedAt,
	}
}

// SettingViews maps a slice.
func SettingViews(settings []domain.Setting) []SettingResponse {
	out := make([]SettingResponse, 0, len(settings))
	for i := range settings {
		out = append(out, SettingView(&settings[i]))
	}
	return out
}
