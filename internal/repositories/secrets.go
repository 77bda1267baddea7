package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
)

// SecretRepository persists credentials and tokens, sealing each value with an [Encryptor].
type SecretRepository struct {
	store  kv
	enc    *Encryptor
	logger *log.Logger
}

// NewSecretRepository creates a [SecretRepository].
//
// With a nil enc values are written unencrypted and a warning is logged once.
func NewSecretRepository(db *sql.DB, enc *Encryptor, logger *log.Logger) *SecretRepository {
	if logger == nil {
		logger = log.Default()
	}
	if !enc.IsEnabled() {
		logger.Warn("secret key not loaded, credentials will be stored unencrypted", "hint", "run `massctl setup secrets`")
	}
	return &SecretRepository{
		store:  kv{db: db, table: "secrets", column: "ciphertext"},
		enc:    enc,
		logger: logger,
	}
}

// Get decrypts and returns the secret stored under key.
func (r *SecretRepository) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := r.store.get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	plain, err := r.enc.Decrypt(sealed)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt secret %q: %w", key, err)
	}
	return plain, true, nil
}

// Set encrypts value and stores it under key.
func (r *SecretRepository) Set(ctx context.Context, key, value string) error {
	sealed, err := r.enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret %q: %w", key, err)
	}
	return r.store.set(ctx, key, sealed)
}

// Delete removes a secret.
func (r *SecretRepository) Delete(ctx context.Context, key string) error {
	return r.store.delete(ctx, key)
}

// Keys lists the names of stored secrets without decrypting them.
func (r *SecretRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.store.all(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
