package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/workdeck/workdeck-server/internal/models"
)

// CreateAuditLog records a destructive operation execution
func (s *PostgresStore) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_logs (id, created_at, actor, action, details)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.getDB().ExecContext(ctx, query,
		entry.ID, entry.CreatedAt, entry.Actor, entry.Action, entry.Details,
	)
	return err
}

// CreateErrorLog persists a captured failure
func (s *PostgresStore) CreateErrorLog(ctx context.Context, entry *models.ErrorLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO error_logs (
			id, created_at, request_id, tenant_id, user_id, path, kind, message, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := s.getDB().ExecContext(ctx, query,
		entry.ID, entry.CreatedAt, entry.RequestID, entry.TenantID, entry.UserID,
		entry.Path, entry.Kind, entry.Message, entry.Details,
	)
	return err
}

// ListErrorLogs lists captured failures, newest first
func (s *PostgresStore) ListErrorLogs(ctx context.Context, limit, offset int) ([]*models.ErrorLog, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM error_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, request_id, tenant_id, user_id, path, kind, message, details
		FROM error_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*models.ErrorLog
	for rows.Next() {
		entry := &models.ErrorLog{}
		if err := rows.Scan(
			&entry.ID, &entry.CreatedAt, &entry.RequestID, &entry.TenantID,
			&entry.UserID, &entry.Path, &entry.Kind, &entry.Message, &entry.Details,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, total, rows.Err()
}
