package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/workdeck/workdeck-server/internal/models"
)

// CreateAgreement creates a draft agreement. The version is assigned as the
// next integer within the agreement's scope (tenant or global) so versions
// stay monotonic per scope.
func (s *PostgresStore) CreateAgreement(ctx context.Context, agreement *models.Agreement) error {
	if agreement.ID == uuid.Nil {
		agreement.ID = uuid.New()
	}

	now := time.Now()
	agreement.CreatedAt = now
	agreement.UpdatedAt = now
	agreement.Status = models.AgreementStatusDraft

	var err error
	if agreement.TenantID != nil {
		err = s.getDB().QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM agreements WHERE tenant_id = $1`,
			agreement.TenantID,
		).Scan(&agreement.Version)
	} else {
		err = s.getDB().QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM agreements WHERE tenant_id IS NULL`,
		).Scan(&agreement.Version)
	}
	if err != nil {
		return fmt.Errorf("next agreement version: %w", err)
	}

	query := `
		INSERT INTO agreements (
			id, created_at, updated_at, tenant_id, status, version, title, body
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err = s.getDB().ExecContext(ctx, query,
		agreement.ID, agreement.CreatedAt, agreement.UpdatedAt, agreement.TenantID,
		agreement.Status, agreement.Version, agreement.Title, agreement.Body,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetAgreement gets an agreement by ID
func (s *PostgresStore) GetAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, status, version, title, body
		FROM agreements
		WHERE id = $1`

	agreement := &models.Agreement{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&agreement.ID, &agreement.CreatedAt, &agreement.UpdatedAt, &agreement.TenantID,
		&agreement.Status, &agreement.Version, &agreement.Title, &agreement.Body,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return agreement, err
}

// GetActiveAgreement gets the tenant-specific active agreement
func (s *PostgresStore) GetActiveAgreement(ctx context.Context, tenantID uuid.UUID) (*models.Agreement, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, status, version, title, body
		FROM agreements
		WHERE tenant_id = $1 AND status = $2`

	agreement := &models.Agreement{}
	err := s.getDB().QueryRowContext(ctx, query, tenantID, models.AgreementStatusActive).Scan(
		&agreement.ID, &agreement.CreatedAt, &agreement.UpdatedAt, &agreement.TenantID,
		&agreement.Status, &agreement.Version, &agreement.Title, &agreement.Body,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return agreement, err
}

// GetActiveGlobalAgreement gets the active default agreement for all tenants
func (s *PostgresStore) GetActiveGlobalAgreement(ctx context.Context) (*models.Agreement, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, status, version, title, body
		FROM agreements
		WHERE tenant_id IS NULL AND status = $1`

	agreement := &models.Agreement{}
	err := s.getDB().QueryRowContext(ctx, query, models.AgreementStatusActive).Scan(
		&agreement.ID, &agreement.CreatedAt, &agreement.UpdatedAt, &agreement.TenantID,
		&agreement.Status, &agreement.Version, &agreement.Title, &agreement.Body,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return agreement, err
}

// ActivateAgreement activates a draft agreement and retires the currently
// active agreement in the same scope, so at most one agreement is active per
// tenant and at most one global agreement is active.
func (s *PostgresStore) ActivateAgreement(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ts := tx.(*PostgresStore)

	agreement, err := ts.GetAgreement(ctx, id)
	if err != nil {
		return nil, err
	}

	if agreement.Status == models.AgreementStatusRetired {
		return nil, fmt.Errorf("%w: agreement is retired", ErrInvalidData)
	}

	now := time.Now()
	if agreement.TenantID != nil {
		_, err = ts.getDB().ExecContext(ctx,
			`UPDATE agreements SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND status = $4 AND id <> $5`,
			models.AgreementStatusRetired, now, agreement.TenantID, models.AgreementStatusActive, id,
		)
	} else {
		_, err = ts.getDB().ExecContext(ctx,
			`UPDATE agreements SET status = $1, updated_at = $2 WHERE tenant_id IS NULL AND status = $3 AND id <> $4`,
			models.AgreementStatusRetired, now, models.AgreementStatusActive, id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("retire previous agreement: %w", err)
	}

	_, err = ts.getDB().ExecContext(ctx,
		`UPDATE agreements SET status = $1, updated_at = $2 WHERE id = $3`,
		models.AgreementStatusActive, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("activate agreement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	agreement.Status = models.AgreementStatusActive
	agreement.UpdatedAt = now
	return agreement, nil
}

// CreateAcceptance records a user's acceptance of an agreement version
func (s *PostgresStore) CreateAcceptance(ctx context.Context, acceptance *models.AgreementAcceptance) error {
	if acceptance.ID == uuid.Nil {
		acceptance.ID = uuid.New()
	}
	if acceptance.AcceptedAt.IsZero() {
		acceptance.AcceptedAt = time.Now()
	}

	query := `
		INSERT INTO agreement_acceptances (
			id, tenant_id, user_id, agreement_id, version, accepted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (tenant_id, user_id, agreement_id, version) DO NOTHING`

	_, err := s.getDB().ExecContext(ctx, query,
		acceptance.ID, acceptance.TenantID, acceptance.UserID,
		acceptance.AgreementID, acceptance.Version, acceptance.AcceptedAt,
	)

	return err
}

// HasAcceptance reports whether an acceptance row exists for the exact
// agreement version. Accepting version N does not satisfy version N+1.
func (s *PostgresStore) HasAcceptance(ctx context.Context, tenantID, userID, agreementID uuid.UUID, version int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM agreement_acceptances
			WHERE tenant_id = $1 AND user_id = $2 AND agreement_id = $3 AND version = $4
		)`

	var exists bool
	err := s.getDB().QueryRowContext(ctx, query, tenantID, userID, agreementID, version).Scan(&exists)
	return exists, err
}
