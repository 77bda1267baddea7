package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Store is a persistent key/value store. The settings and secret repositories both satisfy it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Settings keys.
const (
	SettingServerURL     = "server_url"
	SettingPort          = "port"
	SettingOwnerName     = "owner_name"
	SettingUsername      = "username"
	SettingAuthServerURL = "auth_server_url"
)

// Secret keys.
const (
	SecretPassword    = "password"
	SecretToken       = "ma_auth_token"
	SecretCredentials = "auth_credentials"
)

// Credentials are a username and password held in memory for one login.
type Credentials struct {
	Username string
	Password string
}

// CredentialDescriptor is the serialized record of how to replay a login.
type CredentialDescriptor struct {
	Strategy Kind              `json:"strategy"`
	Data     map[string]string `json:"data,omitempty"`
}

func (d CredentialDescriptor) encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential descriptor: %w", err)
	}
	return string(b), nil
}

func decodeDescriptor(s string) (CredentialDescriptor, error) {
	var d CredentialDescriptor
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return d, fmt.Errorf("failed to decode credential descriptor: %w", err)
	}
	if _, err := ParseKind(string(d.Strategy)); err != nil {
		return d, err
	}
	return d, nil
}

// record is everything a successful login writes and [Manager.Restore] reads back.
type record struct {
	serverURL     string
	port          int
	ownerName     string
	username      string
	authServerURL string

	password   string
	token      string
	descriptor *CredentialDescriptor
}

// write replaces the saved record with p. Keys p leaves empty are deleted, so a login to a
// different server or strategy cannot inherit the previous one's portal, password or token.
func (p record) write(ctx context.Context, settings, secrets Store) error {
	var errs []error
	put := func(s Store, key, value string) {
		if s == nil {
			return
		}
		var err error
		if value != "" {
			err = s.Set(ctx, key, value)
		} else if _, ok, gerr := s.Get(ctx, key); gerr != nil {
			err = gerr
		} else if ok {
			err = s.Delete(ctx, key)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	port := ""
	if p.port > 0 {
		port = strconv.Itoa(p.port)
	}
	put(settings, SettingServerURL, p.serverURL)
	put(settings, SettingPort, port)
	put(settings, SettingOwnerName, p.ownerName)
	put(settings, SettingUsername, p.username)
	put(settings, SettingAuthServerURL, p.authServerURL)

	descriptor := ""
	if p.descriptor != nil {
		encoded, err := p.descriptor.encode()
		if err != nil {
			errs = append(errs, err)
		}
		descriptor = encoded
	}
	put(secrets, SecretPassword, p.password)
	put(secrets, SecretToken, p.token)
	put(secrets, SecretCredentials, descriptor)

	return errors.Join(errs...)
}

func readRecord(ctx context.Context, settings, secrets Store) (record, error) {
	var s record
	var errs []error
	get := func(st Store, key string) string {
		if st == nil {
			return ""
		}
		v, _, err := st.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	s.serverURL = get(settings, SettingServerURL)
	if p := get(settings, SettingPort); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("stored port %q: %w", p, err))
		}
		s.port = n
	}
	s.ownerName = get(settings, SettingOwnerName)
	s.username = get(settings, SettingUsername)
	s.authServerURL = get(settings, SettingAuthServerURL)
	s.password = get(secrets, SecretPassword)
	s.token = get(secrets, SecretToken)

	if raw := get(secrets, SecretCredentials); raw != "" {
		d, err := decodeDescriptor(raw)
		if err != nil {
			errs = append(errs, err)
		} else {
			s.descriptor = &d
		}
	}

	return s, errors.Join(errs...)
}

// clearSecrets removes every stored credential and token.
func clearSecrets(ctx context.Context, secrets Store) error {
	if secrets == nil {
		return nil
	}
	var errs []error
	for _, key := range []string{SecretPassword, SecretToken, SecretCredentials} {
		if err := secrets.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
