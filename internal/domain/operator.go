package domain

import "time"

// OperatorRole scopes what an operator may do.
type OperatorRole string

const (
	OperatorRoleAdmin OperatorRole = "ADMIN"
	OperatorRoleAgent OperatorRole = "AGENT"
)

// Operator is a staff member handling tickets through the console.
type Operator struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         OperatorRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
