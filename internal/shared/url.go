// Server address normalisation shared by the login flow and reconnection.
//
// Saved settings store the normalised form, so changes here must stay
// compatible with previously stored addresses.
package shared

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var privateHostPrefixes = []string{"192.", "10.", "172.", "localhost", "127."}

// NormalizeServerURL trims the input, strips trailing slashes and adds a scheme when none is present.
//
// Private and loopback looking hosts default to http://, everything else to https://.
func NormalizeServerURL(input string) (string, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimRight(s, "/")
	if s == "" {
		return "", fmt.Errorf("%w: server address is required", ErrValidation)
	}

	if !strings.Contains(s, "://") {
		if IsPrivateHost(s) {
			s = "http://" + s
		} else {
			s = "https://" + s
		}
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: malformed server address %q", ErrValidation, input)
	}

	return s, nil
}

// IsPrivateHost reports whether a scheme-less address looks like a LAN or loopback host.
func IsPrivateHost(address string) bool {
	for _, prefix := range privateHostPrefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}
	return false
}

// BuildServerURL appends port to a normalised URL unless it is zero, the scheme default, or the URL already has a port.
func BuildServerURL(normalized string, port int) string {
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return normalized
	}

	if port <= 0 || u.Port() != "" {
		return normalized
	}

	if (u.Scheme == "http" && port == 80) || (u.Scheme == "https" && port == 443) {
		return normalized
	}

	u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	return u.String()
}

// WebSocketURL converts a server base URL into its socket endpoint.
func WebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: malformed server address %q", ErrValidation, base)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Origin returns the scheme://host[:port] part of a URL, or "" when it does not parse.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
