package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/shared"
)

// nativeResult is the outcome of in-band authentication.
type nativeResult struct {
	token  string
	origin TokenOrigin
	// persist is false when the stored token was reused unchanged.
	persist bool
}

// authenticateNative runs the post-connect sequence on an open transport:
//
//  1. a stored token, when present, is tried first
//  2. otherwise the credentials are exchanged for a short-lived token
//  3. the short-lived token is upgraded to a long-lived one when the server allows it
func authenticateNative(ctx context.Context, tr Transport, stored string, creds Credentials, logger *log.Logger) (nativeResult, error) {
	if stored != "" {
		ok, err := tr.AuthenticateWithToken(ctx, stored)
		switch {
		case err == nil && ok:
			return nativeResult{token: stored, origin: TokenStored}, nil
		case err != nil && !errors.Is(err, shared.ErrRPC):
			return nativeResult{}, err
		}
		logger.Info("stored token rejected, falling back to credentials")
	}

	if creds.Username == "" || creds.Password == "" {
		return nativeResult{}, errors.New("no valid token and no credentials supplied")
	}

	token, err := tr.LoginWithCredentials(ctx, creds.Username, creds.Password)
	if err != nil {
		return nativeResult{}, fmt.Errorf("login rejected: %w", err)
	}

	res := nativeResult{token: token, origin: TokenIssued, persist: true}

	long, err := tr.CreateLongLivedToken(ctx)
	if err != nil {
		logger.Warn("long-lived token unavailable, keeping session token", "error", err)
		return res, nil
	}

	res.token, res.origin = long, TokenLongLived
	return res, nil
}
