package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the lifecycle state of a tenant
type TenantStatus string

const (
	// TenantStatusActive - tenant is fully onboarded and serving traffic
	TenantStatusActive TenantStatus = "active"
	// TenantStatusInactive - tenant exists but onboarding is incomplete
	TenantStatusInactive TenantStatus = "inactive"
	// TenantStatusSuspended - tenant is blocked for everyone, admins included
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant represents an isolated customer organization
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`

	Status      TenantStatus `json:"status" db:"status"`
	SuspendedAt *time.Time   `json:"suspendedAt,omitempty" db:"suspended_at"`

	BillingEmail string `json:"billingEmail,omitempty" db:"billing_email"`
}

// Sentinel tenant slugs used by the ops jobs.
const (
	// QuarantineTenantSlug is the destination for fixed orphan rows. The
	// tenant is created lazily on first fix execution and is always suspended.
	QuarantineTenantSlug = "quarantine"
	QuarantineTenantName = "Quarantine (orphaned records)"

	// DefaultTenantSlug is the backfill target when none is specified.
	DefaultTenantSlug = "default"
	DefaultTenantName = "Default"
)
