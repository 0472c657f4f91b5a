package dto

import (
	"time"

	"github.com/spec-kit/support-core/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  OperatorResponse `json:"operator"`
}

// CreateOperatorRequest payload.
type CreateOperatorRequest struct {
	Email       string              `json:"email"`
	DisplayName string              `json:"display_name"`
	Password    string              `json:"password"`
	Role        domain.OperatorRole `json:"role"`
}

// OperatorResponse is the public view of an operator account.
type OperatorResponse struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	DisplayName string              `json:"display_name"`
	Role        domain.OperatorRole `json:"role"`
	IsActive    bool                `json:"is_active"`
	CreatedAt   time.Time           `json:"created_at"`
}

// OperatorView maps the domain record onto the wire shape.
func OperatorView(operator *domain.Operator) OperatorResponse {
	return OperatorResponse{
		ID:          operator.ID,
		Email:       operator.Email,
		DisplayName: operator.DisplayName,
		Role:        operator.Role,
		IsActive:    operator.IsActive,
		CreatedAt:   operator.CreatedAt,
	}
}
