package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CountOrphans counts rows whose tenant column is null. Read-only.
func (s *PostgresStore) CountOrphans(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id IS NULL`,
		pq.QuoteIdentifier(table))

	var count int64
	err := s.getDB().QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

// SampleOrphans returns up to limit orphaned row identifiers with a
// best-effort display value for the operator report
func (s *PostgresStore) SampleOrphans(ctx context.Context, table string, limit int) ([]OrphanSample, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	display := "''"
	if col, ok := displayColumn[table]; ok {
		display = fmt.Sprintf("COALESCE(%s::text, '')", pq.QuoteIdentifier(col))
	}

	query := fmt.Sprintf(`SELECT id::text, %s FROM %s WHERE tenant_id IS NULL LIMIT $1`,
		display, pq.QuoteIdentifier(table))

	rows, err := s.getDB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []OrphanSample
	for rows.Next() {
		var sample OrphanSample
		if err := rows.Scan(&sample.ID, &sample.Display); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// AdoptOrphans assigns tenantID to every row with a null tenant column and
// returns the number of rows changed. Idempotent: a second run matches
// nothing.
func (s *PostgresStore) AdoptOrphans(ctx context.Context, table string, tenantID uuid.UUID) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`UPDATE %s SET tenant_id = $1 WHERE tenant_id IS NULL`,
		pq.QuoteIdentifier(table))

	result, err := s.getDB().ExecContext(ctx, query, tenantID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// PurgeTable deletes every row in a tenant-scoped table. Only the purge job
// calls this, behind its environment gates.
func (s *PostgresStore) PurgeTable(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s`, pq.QuoteIdentifier(table))

	result, err := s.getDB().ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
