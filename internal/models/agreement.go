package models

import (
	"time"

	"github.com/google/uuid"
)

// AgreementStatus represents agreement lifecycle states
type AgreementStatus string

const (
	AgreementStatusDraft   AgreementStatus = "draft"
	AgreementStatusActive  AgreementStatus = "active"
	AgreementStatusRetired AgreementStatus = "retired"
)

// Agreement represents a versioned legal terms document. A nil TenantID
// means the agreement is the global default for all tenants.
// At most one agreement is active per tenant, and at most one global
// agreement is active.
type Agreement struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`

	Status  AgreementStatus `json:"status" db:"status"`
	Version int             `json:"version" db:"version"`

	Title string `json:"title" db:"title"`
	Body  string `json:"body" db:"body"`
}

// AgreementAcceptance ties a (tenant, user, agreement, version) tuple to an
// acceptance timestamp. Acceptance of version N does not satisfy version N+1.
type AgreementAcceptance struct {
	ID          uuid.UUID `json:"id" db:"id"`
	TenantID    uuid.UUID `json:"tenantId" db:"tenant_id"`
	UserID      uuid.UUID `json:"userId" db:"user_id"`
	AgreementID uuid.UUID `json:"agreementId" db:"agreement_id"`
	Version     int       `json:"version" db:"version"`
	AcceptedAt  time.Time `json:"acceptedAt" db:"accepted_at"`
}
