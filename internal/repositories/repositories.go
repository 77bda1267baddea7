package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// kv implements the queries shared by the settings and secrets tables.
type kv struct {
	db     *sql.DB
	table  string
	column string
}

func (s kv) get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE key = ?", s.column, s.table)

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s %q: %w", s.table, key, err)
	}
	return value, true, nil
}

func (s kv) set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (key, %[2]s, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET %[2]s = excluded.%[2]s, updated_at = CURRENT_TIMESTAMP
	`, s.table, s.column)

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %s %q: %w", s.table, key, err)
	}
	return nil
}

func (s kv) delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", s.table, key, err)
	}
	return nil
}

func (s kv) all(ctx context.Context) (map[string]string, error) {
	query := fmt.Sprintf("SELECT key, %s FROM %s ORDER BY key", s.column, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", s.table, err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
