package transport

import (
	"context"
	"fmt"

	"github.com/desertthunder/massctl/internal/shared"
)

// LoginWithCredentials exchanges a username and password for a short-lived access token.
func (c *Client) LoginWithCredentials(ctx context.Context, username, password string) (string, error) {
	var res LoginResult
	err := c.Call(ctx, "auth/login", map[string]any{
		"username":    username,
		"password":    password,
		"device_name": c.deviceName,
	}, &res)
	if err != nil {
		return "", err
	}

	if !res.Success || res.AccessToken == "" {
		reason := res.Error
		if reason == "" {
			reason = "credentials rejected"
		}
		return "", fmt.Errorf("%w: %s", shared.ErrAuth, reason)
	}
	return res.AccessToken, nil
}

// AuthenticateWithToken authenticates the open connection with a stored token.
func (c *Client) AuthenticateWithToken(ctx context.Context, token string) (bool, error) {
	var res AuthResult
	if err := c.Call(ctx, "auth", map[string]any{"token": token}, &res); err != nil {
		return false, err
	}
	return res.Authenticated, nil
}

// CreateLongLivedToken asks the server for a token usable by future sessions.
//
// The connection must already be authenticated.
func (c *Client) CreateLongLivedToken(ctx context.Context) (string, error) {
	var token string
	if err := c.Call(ctx, "auth/token/create", map[string]any{"name": c.tokenName}, &token); err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: server returned an empty token", shared.ErrAuth)
	}
	return token, nil
}
