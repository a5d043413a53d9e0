package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a principal
type UserRole string

const (
	// RoleOperator - platform operator, bypasses tenant enforcement
	RoleOperator UserRole = "operator"
	// RoleAdmin - tenant administrator
	RoleAdmin UserRole = "admin"
	// RoleMember - regular tenant user
	RoleMember UserRole = "member"
)

// User represents a system user
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Email     string `json:"email" db:"email"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	Role     UserRole `json:"role" db:"role"`
	IsActive bool     `json:"isActive" db:"is_active"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`

	// Nullable: an account whose tenant was deleted or never assigned is
	// orphaned and gets blocked by the agreement guard until repaired.
	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`
}

// IsOperator reports whether the user is a platform operator
func (u *User) IsOperator() bool {
	return u.Role == RoleOperator
}
