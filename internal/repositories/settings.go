package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// SettingsRepository persists plain client settings.
type SettingsRepository struct {
	store kv
}

// NewSettingsRepository creates a new [SettingsRepository] with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{store: kv{db: db, table: "settings", column: "value"}}
}

// Get returns the value stored under key and whether it exists.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	return r.store.get(ctx, key)
}

// Set inserts or replaces the value under key.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	return r.store.set(ctx, key, value)
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	return r.store.delete(ctx, key)
}

// All returns every stored setting.
func (r *SettingsRepository) All(ctx context.Context) (map[string]string, error) {
	return r.store.all(ctx)
}

// GetInt reads an integer setting.
func (r *SettingsRepository) GetInt(ctx context.Context, key string) (int, bool, error) {
	v, ok, err := r.store.get(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("setting %q is not an integer: %w", key, err)
	}
	return n, true, nil
}

// SetInt stores an integer setting.
func (r *SettingsRepository) SetInt(ctx context.Context, key string, value int) error {
	return r.store.set(ctx, key, strconv.Itoa(value))
}
