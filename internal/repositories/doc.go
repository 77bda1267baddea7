// Package repositories implements SQLite persistence for client settings and secrets.
//
// Both stores are flat key/value tables created by the embedded migrations in [shared]:
//   - [SettingsRepository] : server address, port, owner name, username and UI preferences
//   - [SecretRepository] : passwords, tokens and serialized credential descriptors, encrypted at rest
//
// Secrets are sealed with AES-256-GCM using a key derived by HKDF-SHA256 from a local key file
// (see [Encryptor] and [GenerateKeyFile]). A nil [Encryptor] stores values as-is.
package repositories
