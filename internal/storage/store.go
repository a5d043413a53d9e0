package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/workdeck/workdeck-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
	ErrUnknownTable = errors.New("table is not tenant-scoped")
)

// OrphanSample identifies one orphaned row for an operator report
type OrphanSample struct {
	ID      string `json:"id"`
	Display string `json:"display,omitempty"`
}

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Tenant methods
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error
	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error)

	// Agreement methods
	CreateAgreement(ctx context.Context, agreement *models.Agreement) error
	GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	GetActiveAgreement(ctx context.Context, tenantID uuid.UUID) (*models.Agreement, error)
	GetActiveGlobalAgreement(ctx context.Context) (*models.Agreement, error)
	ActivateAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error)

	// Acceptance methods
	CreateAcceptance(ctx context.Context, acceptance *models.AgreementAcceptance) error
	HasAcceptance(ctx context.Context, tenantID, userID, agreementID uuid.UUID, version int) (bool, error)

	// Orphan methods, restricted to the enumerated tenant-scoped tables
	CountOrphans(ctx context.Context, table string) (int64, error)
	SampleOrphans(ctx context.Context, table string, limit int) ([]OrphanSample, error)
	AdoptOrphans(ctx context.Context, table string, tenantID uuid.UUID) (int64, error)
	PurgeTable(ctx context.Context, table string) (int64, error)

	// Schema introspection
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)

	// Audit and error logs
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	CreateErrorLog(ctx context.Context, entry *models.ErrorLog) error
	ListErrorLogs(ctx context.Context, limit, offset int) ([]*models.ErrorLog, int64, error)

	// Close the store
	Close() error
}
