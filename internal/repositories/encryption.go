package repositories

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/massctl/internal/shared"
	"golang.org/x/crypto/hkdf"
)

const (
	keySize        = 32
	defaultContext = "massctl-secret-store"
)

var (
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Encryptor seals secrets with AES-GCM. The nonce is prepended to each ciphertext.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor derives an AES-256 key from master for the given context.
func NewEncryptor(master []byte, context string) (*Encryptor, error) {
	if len(master) < 16 {
		return nil, fmt.Errorf("%w: master key must be at least 16 bytes", shared.ErrInvalidConfig)
	}
	if context == "" {
		context = defaultContext
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(context)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// LoadEncryptor reads a base64 key file written by [GenerateKeyFile].
//
// A missing file returns [shared.ErrMissingKey].
func LoadEncryptor(path string) (*Encryptor, error) {
	data, err := os.ReadFile(shared.ExpandHome(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingKey, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	master, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: key file is not base64", shared.ErrInvalidConfig)
	}
	return NewEncryptor(master, defaultContext)
}

// GenerateKeyFile writes a fresh random key to path with owner-only permissions.
// It refuses to overwrite an existing key since that would orphan stored secrets.
func GenerateKeyFile(path string) error {
	path = shared.ExpandHome(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	master := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, master); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(master) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// IsEnabled reports whether values are actually encrypted.
func (e *Encryptor) IsEnabled() bool {
	return e != nil && e.aead != nil
}

// Encrypt returns base64(nonce || ciphertext). Empty input is returned unchanged.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if !e.IsEnabled() || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses [Encryptor.Encrypt].
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if !e.IsEnabled() || ciphertext == "" {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	n := e.aead.NonceSize()
	if len(data) < n+e.aead.Overhead()+1 {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plain, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plain), nil
}
