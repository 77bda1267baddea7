package auth

import (
	"fmt"
	"strings"

	"github.com/desertthunder/massctl/internal/shared"
)

// Kind names an authentication strategy.
type Kind string

const (
	KindNone     Kind = "none"
	KindBasic    Kind = "basic"
	KindAuthelia Kind = "authelia"
	KindNative   Kind = "music_assistant"
)

// ParseKind accepts a strategy name as typed by a user or read from storage.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return KindNone, nil
	case "basic":
		return KindBasic, nil
	case "authelia":
		return KindAuthelia, nil
	case "music_assistant", "native":
		return KindNative, nil
	}
	return "", fmt.Errorf("%w: unknown auth strategy %q", shared.ErrInvalidArgument, s)
}

// Strategy is the detected authentication requirement of one server. Values are never mutated;
// re-detection produces a new Strategy.
type Strategy struct {
	Kind Kind
	// AuthServerURL is set for Authelia portals that live on a different origin than the server.
	AuthServerURL string
}

// PreConnect reports whether credentials must be validated before the socket is opened.
func (s Strategy) PreConnect() bool {
	return s.Kind == KindBasic || s.Kind == KindAuthelia
}

// NeedsCredentials reports whether a login step exists for this strategy.
func (s Strategy) NeedsCredentials() bool {
	return s.Kind != KindNone
}

func (s Strategy) String() string {
	if s.AuthServerURL != "" {
		return fmt.Sprintf("%s (%s)", s.Kind, s.AuthServerURL)
	}
	return string(s.Kind)
}
