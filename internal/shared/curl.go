// Header capture from a browser "Copy as cURL" export.
//
// Servers behind an SSO proxy that the login flow cannot drive can still be reached
// by replaying the session headers of a request the browser already made.
package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+(?:'([^']+)'|"([^"]+)")`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+(?:'([^']+)'|"([^"]+)")`)
	curlURLRe    = regexp.MustCompile(`'(https?://[^']+)'|"(https?://[^"]+)"|(?:^|\s)(https?://\S+)`)
)

// Headers the client manages itself. Replaying accept-encoding would disable transparent gzip.
var skippedCurlHeaders = map[string]bool{
	"Accept-Encoding": true,
	"Content-Length":  true,
	"Host":            true,
	"Connection":      true,
}

// CapturedRequest is the address and replayable headers of a copied cURL command.
type CapturedRequest struct {
	URL    string
	Header http.Header
}

// ReadCurlFile parses the cURL command stored at path.
func ReadCurlFile(path string) (*CapturedRequest, error) {
	content, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurl(content)
}

// ParseCurl extracts the URL, headers and cookies of a cURL command.
//
// A -b/--cookie argument replaces any Cookie header.
func ParseCurl(data []byte) (*CapturedRequest, error) {
	line := strings.ReplaceAll(string(data), "\\\n", " ")
	line = strings.ReplaceAll(line, "\\", "")

	req := &CapturedRequest{Header: http.Header{}}
	if m := curlURLRe.FindStringSubmatch(line); m != nil {
		req.URL = firstGroup(m)
	}

	for _, m := range curlHeaderRe.FindAllStringSubmatch(line, -1) {
		key, value, ok := strings.Cut(firstGroup(m), ":")
		if !ok {
			continue
		}
		key = http.CanonicalHeaderKey(strings.TrimSpace(key))
		if key == "" || skippedCurlHeaders[key] {
			continue
		}
		req.Header.Set(key, strings.TrimSpace(value))
	}

	if m := curlCookieRe.FindStringSubmatch(line); m != nil {
		req.Header.Set("Cookie", firstGroup(m))
	}

	if len(req.Header) == 0 {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidArgument)
	}
	return req, nil
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
