package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/desertthunder/massctl/internal/services"
)

const autheliaCookie = "authelia_session"

// preAuthenticator validates credentials at the proxy layer and returns the headers
// that let the socket upgrade through the same proxy.
type preAuthenticator interface {
	authenticate(ctx context.Context, serverURL string, creds Credentials) (http.Header, error)
}

func newPreAuthenticator(s Strategy, client *http.Client) (preAuthenticator, error) {
	switch s.Kind {
	case KindBasic:
		return basicAuth{client: client}, nil
	case KindAuthelia:
		return autheliaAuth{client: client, authServerURL: s.AuthServerURL}, nil
	}
	return nil, fmt.Errorf("strategy %s has no pre-connect step", s.Kind)
}

// basicAuth checks credentials by repeating the detection probe with an Authorization header.
type basicAuth struct {
	client *http.Client
}

func basicHeader(creds Credentials) http.Header {
	token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
	return http.Header{"Authorization": {"Basic " + token}}
}

func (b basicAuth) authenticate(ctx context.Context, serverURL string, creds Credentials) (http.Header, error) {
	header := basicHeader(creds)

	resp, err := services.NewAPIService(serverURL, b.client).WithHeader(header).Get(ctx, "/info")
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("credentials rejected (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return header, nil
}

// autheliaAuth signs in through Authelia's first factor endpoint and forwards the session cookie.
type autheliaAuth struct {
	client        *http.Client
	authServerURL string
}

type firstFactorRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	KeepMeLoggedIn bool   `json:"keepMeLoggedIn"`
	TargetURL      string `json:"targetURL,omitempty"`
}

type firstFactorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (a autheliaAuth) authenticate(ctx context.Context, serverURL string, creds Credentials) (http.Header, error) {
	portal := a.authServerURL
	if portal == "" {
		portal = serverURL
	}

	body := firstFactorRequest{
		Username:       creds.Username,
		Password:       creds.Password,
		KeepMeLoggedIn: true,
		TargetURL:      serverURL,
	}

	resp, err := services.NewAPIService(portal, a.client).PostJSON(ctx, "/api/firstfactor", body)
	if err != nil {
		return nil, fmt.Errorf("auth server unreachable: %w", err)
	}

	var out firstFactorResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("credentials rejected: %w", err)
	}
	if out.Status != "OK" {
		return nil, fmt.Errorf("credentials rejected: %s", out.Message)
	}

	for _, c := range resp.Cookies {
		if c.Name == autheliaCookie && c.Value != "" {
			return http.Header{"Cookie": {(&http.Cookie{Name: c.Name, Value: c.Value}).String()}}, nil
		}
	}
	return nil, fmt.Errorf("auth server did not issue a %s cookie", autheliaCookie)
}
