package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/services"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
)

const (
	defaultDetectTimeout = 5 * time.Second

	// nativeAuthSchema is the first server schema with built-in user accounts.
	nativeAuthSchema = 28
)

// DetectorOpts configures a [Detector].
type DetectorOpts struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Logger
}

// Detector classifies a server's authentication requirement from a single unauthenticated probe.
type Detector struct {
	client  *http.Client
	timeout time.Duration
	logger  *log.Logger
}

// NewDetector creates a [Detector]. The HTTP client is copied so that redirects are not followed.
func NewDetector(opts DetectorOpts) *Detector {
	d := &Detector{
		client:  services.NoRedirectClient(opts.HTTPClient),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if d.timeout <= 0 {
		d.timeout = defaultDetectTimeout
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	return d
}

// Detect probes GET {serverBaseURL}/info and classifies the response:
//
//   - a redirect whose Location carries an "rd" parameter or names Authelia: [KindAuthelia],
//     with AuthServerURL set when the portal is on another origin
//   - any response with an X-Authelia-* header, an authelia_session cookie or an Authelia portal body: [KindAuthelia]
//   - 401 with a "WWW-Authenticate: Basic" challenge: [KindBasic]
//   - 2xx server info with auth_required, or without the flag on schema 28 and later: [KindNative]
//   - other 2xx server info: [KindNone]
//
// Anything else, including transport errors and timeouts, is a detection error.
// Detect never sends credentials.
func (d *Detector) Detect(ctx context.Context, serverBaseURL string) (Strategy, error) {
	base, err := shared.NormalizeServerURL(serverBaseURL)
	if err != nil {
		return Strategy{}, &Error{Kind: shared.ErrValidation, Op: "detect", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := services.NewAPIService(base, d.client).Get(ctx, "/info")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Strategy{}, detectionError("detect", fmt.Errorf("%w: no response from %s within %s", shared.ErrTimeout, base, d.timeout))
		}
		return Strategy{}, detectionError("detect", err)
	}

	s, err := classify(base, resp)
	if err != nil {
		return Strategy{}, detectionError("detect", err)
	}

	d.logger.Debug("probe classified", "url", base, "status", resp.StatusCode, "strategy", s.Kind)
	return s, nil
}

func classify(base string, resp *services.APIResponse) (Strategy, error) {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Headers.Get("Location")
		if isAutheliaRedirect(loc) {
			return autheliaStrategy(base, loc), nil
		}
		return Strategy{}, fmt.Errorf("unexpected redirect (%d) to %q", resp.StatusCode, loc)
	}

	if hasAutheliaMarker(resp) {
		return Strategy{Kind: KindAuthelia}, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		challenge := strings.ToLower(resp.Headers.Get("WWW-Authenticate"))
		if strings.HasPrefix(challenge, "basic") {
			return Strategy{Kind: KindBasic}, nil
		}
		return Strategy{}, fmt.Errorf("unrecognised 401 challenge %q", resp.Headers.Get("WWW-Authenticate"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Strategy{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var info models.ServerInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil || !info.Valid() {
		return Strategy{}, errors.New("response is not Music Assistant server info")
	}

	if requiresNativeAuth(info) {
		return Strategy{Kind: KindNative}, nil
	}
	return Strategy{Kind: KindNone}, nil
}

func requiresNativeAuth(info models.ServerInfo) bool {
	if info.AuthRequired != nil {
		return *info.AuthRequired
	}
	return info.SchemaVersion >= nativeAuthSchema
}

func isAutheliaRedirect(loc string) bool {
	if loc == "" {
		return false
	}
	if strings.Contains(strings.ToLower(loc), "authelia") {
		return true
	}
	u, err := url.Parse(loc)
	return err == nil && u.Query().Has("rd")
}

func autheliaStrategy(base, loc string) Strategy {
	s := Strategy{Kind: KindAuthelia}
	if origin := shared.Origin(loc); origin != "" && origin != shared.Origin(base) {
		s.AuthServerURL = origin
	}
	return s
}

func hasAutheliaMarker(resp *services.APIResponse) bool {
	for name := range resp.Headers {
		if strings.HasPrefix(strings.ToLower(name), "x-authelia") {
			return true
		}
	}
	for _, c := range resp.Cookies {
		if c.Name == autheliaCookie {
			return true
		}
	}
	return !resp.IsJSON && bytes.Contains(bytes.ToLower(resp.Body), []byte("authelia"))
}
