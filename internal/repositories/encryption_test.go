package repositories

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/massctl/internal/shared"
)

func TestEncryptor(t *testing.T) {
	t.Run("short master key", func(t *testing.T) {
		if _, err := NewEncryptor([]byte("short"), ""); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("nonce makes ciphertexts differ", func(t *testing.T) {
		enc, err := NewEncryptor([]byte("0123456789abcdef"), "")
		if err != nil {
			t.Fatalf("failed to create encryptor: %v", err)
		}

		a, _ := enc.Encrypt("secret")
		b, _ := enc.Encrypt("secret")
		if a == b {
			t.Error("encrypting twice should yield different ciphertexts")
		}
	})

	t.Run("empty and malformed input", func(t *testing.T) {
		enc, err := NewEncryptor([]byte("0123456789abcdef"), "")
		if err != nil {
			t.Fatalf("failed to create encryptor: %v", err)
		}

		if got, err := enc.Encrypt(""); err != nil || got != "" {
			t.Errorf("empty plaintext should pass through, got %q, %v", got, err)
		}
		if _, err := enc.Decrypt("!!!"); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("expected ErrInvalidCiphertext, got %v", err)
		}
		if _, err := enc.Decrypt("YWJj"); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("expected ErrInvalidCiphertext for short data, got %v", err)
		}
	})

	t.Run("key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keys", "secret.key")

		if _, err := LoadEncryptor(path); !errors.Is(err, shared.ErrMissingKey) {
			t.Fatalf("expected ErrMissingKey before generation, got %v", err)
		}

		if err := GenerateKeyFile(path); err != nil {
			t.Fatalf("failed to generate key file: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("key file should exist: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
		}

		if err := GenerateKeyFile(path); err == nil {
			t.Error("generating over an existing key should fail")
		}

		enc, err := LoadEncryptor(path)
		if err != nil {
			t.Fatalf("failed to load key: %v", err)
		}
		sealed, err := enc.Encrypt("token")
		if err != nil {
			t.Fatalf("failed to encrypt: %v", err)
		}

		again, _ := LoadEncryptor(path)
		if plain, err := again.Decrypt(sealed); err != nil || plain != "token" {
			t.Errorf("reloaded key should decrypt, got %q, %v", plain, err)
		}
	})
}
