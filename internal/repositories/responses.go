package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// ResponseRepository persists encoded cache entries so a new process can render the last
// known data before its first fetch completes.
type ResponseRepository struct {
	db *sql.DB
}

// NewResponseRepository creates a new [ResponseRepository] with the given database connection
func NewResponseRepository(db *sql.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Load returns the payload stored under key and when it was fetched.
func (r *ResponseRepository) Load(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var payload string
	var fetchedAt int64

	err := r.db.QueryRowContext(ctx, "SELECT payload, fetched_at FROM responses WHERE key = ?", key).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("failed to load response %q: %w", key, err)
	}
	return []byte(payload), time.UnixMilli(fetchedAt), true, nil
}

// Save inserts or replaces the payload under key.
func (r *ResponseRepository) Save(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	query := `
		INSERT INTO responses (key, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(payload), fetchedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save response %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry named pattern and every entry in the scope pattern names
// ("home" removes "home" and "home:*"). An empty pattern removes everything.
func (r *ResponseRepository) Delete(ctx context.Context, pattern string) (int64, error) {
	var res sql.Result
	var err error

	if pattern == "" {
		res, err = r.db.ExecContext(ctx, "DELETE FROM responses")
	} else {
		prefix := pattern + ":"
		res, err = r.db.ExecContext(ctx,
			"DELETE FROM responses WHERE key = ? OR substr(key, 1, ?) = ?",
			pattern, utf8.RuneCountInString(prefix), prefix)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete responses %q: %w", pattern, err)
	}
	return res.RowsAffected()
}

// Prune removes entries fetched before cutoff.
func (r *ResponseRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM responses WHERE fetched_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune responses: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (r *ResponseRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM responses").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return n, nil
}
