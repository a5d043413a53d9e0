package storage

import "context"

// TableExists reports whether a table exists in the live schema
func (s *PostgresStore) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`

	var exists bool
	err := s.getDB().QueryRowContext(ctx, query, table).Scan(&exists)
	return exists, err
}

// ColumnExists reports whether a column exists on a table in the live schema
func (s *PostgresStore) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)`

	var exists bool
	err := s.getDB().QueryRowContext(ctx, query, table, column).Scan(&exists)
	return exists, err
}
