package auth

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
)

const defaultLoginTimeout = 10 * time.Second

// Transport is the persistent connection the manager authenticates.
type Transport interface {
	Connect(ctx context.Context, url string, header http.Header) error
	IsConnected() bool
	Close() error
	ServerInfo() *models.ServerInfo
	LoginWithCredentials(ctx context.Context, username, password string) (string, error)
	AuthenticateWithToken(ctx context.Context, token string) (bool, error)
	CreateLongLivedToken(ctx context.Context) (string, error)
}

// Options configures a [Manager]. Transport is required; nil stores disable persistence.
type Options struct {
	Transport    Transport
	Settings     Store
	Secrets      Store
	Detector     *Detector
	HTTPClient   *http.Client
	Logger       *log.Logger
	Retry        RetryPolicy
	LoginTimeout time.Duration
}

// LoginRequest carries the user's input for one sign-in attempt.
type LoginRequest struct {
	ServerURL string
	Port      int
	OwnerName string
	Username  string
	Password  string
	// Strategy skips detection when set.
	Strategy *Strategy
	// AuthServerURL overrides the Authelia portal address.
	AuthServerURL string
}

// Manager owns the live [Session] and runs detection, login and connection for it.
type Manager struct {
	transport    Transport
	settings     Store
	secrets      Store
	detector     *Detector
	client       *http.Client
	logger       *log.Logger
	retry        RetryPolicy
	loginTimeout time.Duration

	mu      sync.Mutex
	gen     uint64
	session Session
	profile record
	creds   Credentials
	header  http.Header
	notify  chan<- StateChange

	// ops cancels the connects running under the current generation.
	ops    map[uint64]context.CancelFunc
	nextOp uint64
	// drop asks the next unlock to close the transport. pending is closed once every
	// close requested so far has returned.
	drop    bool
	pending chan struct{}
}

// ticket tags an in-flight operation with the generation and target it started under.
type ticket struct {
	gen    uint64
	target string
}

// NewManager creates a [Manager] in the Idle state.
func NewManager(opts Options) *Manager {
	m := &Manager{
		transport:    opts.Transport,
		settings:     opts.Settings,
		secrets:      opts.Secrets,
		detector:     opts.Detector,
		client:       opts.HTTPClient,
		logger:       opts.Logger,
		retry:        opts.Retry,
		loginTimeout: opts.LoginTimeout,
		ops:          make(map[uint64]context.CancelFunc),
		pending:      make(chan struct{}),
	}
	close(m.pending)
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if m.logger == nil {
		m.logger = log.Default()
	}
	if m.detector == nil {
		m.detector = NewDetector(DetectorOpts{HTTPClient: m.client, Logger: m.logger})
	}
	if m.retry.MaxAttempts <= 0 {
		m.retry = DefaultRetryPolicy()
	}
	if m.loginTimeout <= 0 {
		m.loginTimeout = defaultLoginTimeout
	}
	m.session.UpdatedAt = time.Now()
	return m
}

// Address normalises raw and applies port the same way saved settings are resolved.
func Address(raw string, port int) (string, error) {
	base, err := shared.NormalizeServerURL(raw)
	if err != nil {
		return "", err
	}
	return shared.BuildServerURL(base, port), nil
}

// SetNotifier registers a channel that receives every state change. Sends never block;
// changes are dropped when the channel is full.
func (m *Manager) SetNotifier(ch chan<- StateChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = ch
}

// Session returns a snapshot of the live session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.unlock()

	m.syncLocked()
	s := m.session
	if s.Strategy != nil {
		cp := *s.Strategy
		s.Strategy = &cp
	}
	if s.ServerInfo != nil {
		cp := *s.ServerInfo
		s.ServerInfo = &cp
	}
	return s
}

// Header returns the pre-connect headers of the live session, such as Basic credentials or
// an Authelia session cookie. It is nil for strategies that authenticate in band.
func (m *Manager) Header() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.header.Clone()
}

// IsAuthenticated is the single gate the rest of the client checks before issuing commands.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.unlock()

	m.syncLocked()
	return m.session.Authenticated && (m.session.State == StateAuthenticated || m.session.State == StateConnected)
}

// Detect classifies the strategy of the server at serverURL and records it on the session.
// The result is keyed by the exact address, so a caller that logs in with a separate port
// detects [Address] of the two.
func (m *Manager) Detect(ctx context.Context, serverURL string) (Strategy, error) {
	target, err := shared.NormalizeServerURL(serverURL)
	if err != nil {
		return Strategy{}, &Error{Kind: shared.ErrValidation, Op: "detect", Err: err}
	}

	m.mu.Lock()
	t := m.retargetLocked(target)
	m.setStateLocked(StateDetecting, nil)
	m.unlock()

	m.logger.Info("detecting auth strategy", "url", target)
	s, err := m.detector.Detect(ctx, target)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(t) {
		return Strategy{}, superseded("detect", target)
	}
	if err != nil {
		m.session.LastError = err
		m.setStateLocked(StateUndetected, err)
		return Strategy{}, err
	}

	m.session.Strategy = &s
	m.session.LastError = nil
	m.setStateLocked(StateDetected, nil)
	m.logger.Info("auth strategy detected", "url", target, "strategy", s.Kind)
	return s, nil
}

// Login validates credentials for the session's strategy.
//
// Pre-connect strategies are validated over HTTP and leave the session Authenticated; the caller
// then calls [Manager.Connect]. Native login needs the socket, so it connects and authenticates
// in-band, leaving the session Connected. Strategy none has nothing to validate and returns true.
// A false result always comes with an error, and nothing is persisted.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (bool, error) {
	target, err := req.target()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	strategy, err := m.strategyForLocked(target, req)
	if err != nil {
		m.unlock()
		return false, err
	}

	if m.session.ServerURL == target && (m.session.State == StateAuthenticated || m.session.State == StateConnected) {
		m.unlock()
		return true, nil
	}

	if !strategy.NeedsCredentials() {
		m.unlock()
		return true, nil
	}

	creds := Credentials{Username: strings.TrimSpace(req.Username), Password: req.Password}
	if creds.Username == "" || creds.Password == "" {
		m.unlock()
		return false, validationError("login", "username and password are required for %s", strategy.Kind)
	}

	t := ticket{gen: m.gen, target: target}
	m.profile = req.profile()
	m.setStateLocked(StateAuthenticating, nil)
	m.unlock()

	ctx, cancel := context.WithTimeout(ctx, m.loginTimeout)
	defer cancel()

	if strategy.Kind == KindNative {
		m.mu.Lock()
		m.creds = creds
		m.mu.Unlock()

		if err := m.establish(ctx, t); err != nil {
			return false, err
		}
		return true, nil
	}

	pre, err := newPreAuthenticator(strategy, m.client)
	if err != nil {
		return false, m.fail(t, authError("login", err))
	}

	header, err := pre.authenticate(ctx, target, creds)
	if err != nil {
		m.logger.Warn("login rejected", "url", target, "strategy", strategy.Kind, "error", err)
		return false, m.fail(t, authError("login", err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(t) {
		return false, superseded("login", target)
	}

	// Written under mu so a superseded login never lands over a newer one.
	rec := m.profile
	rec.username = creds.Username
	rec.password = creds.Password
	rec.authServerURL = strategy.AuthServerURL
	rec.descriptor = &CredentialDescriptor{Strategy: strategy.Kind, Data: map[string]string{"username": creds.Username}}
	if strategy.AuthServerURL != "" {
		rec.descriptor.Data["auth_server_url"] = strategy.AuthServerURL
	}
	if err := rec.write(ctx, m.settings, m.secrets); err != nil {
		m.logger.Error("failed to persist credentials", "error", err)
	}

	m.header = header
	m.session.Username = creds.Username
	m.session.Authenticated = true
	m.session.LastError = nil
	m.setStateLocked(StateAuthenticated, nil)
	m.logger.Info("login succeeded", "url", target, "strategy", strategy.Kind, "user", creds.Username)
	return true, nil
}

// Connect opens the transport for the current session and waits for it to come up,
// authenticating in-band for native servers.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Strategy == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no auth strategy for the current server", shared.ErrNotAuthenticated)
	}
	t := ticket{gen: m.gen, target: m.session.ServerURL}
	m.mu.Unlock()

	return m.establish(ctx, t)
}

// SignIn runs detection (unless req names a strategy), login when the strategy has one, and connect.
func (m *Manager) SignIn(ctx context.Context, req LoginRequest) error {
	target, err := req.target()
	if err != nil {
		return err
	}

	strategy := req.Strategy
	if strategy == nil {
		s, err := m.Detect(ctx, target)
		if err != nil {
			return err
		}
		strategy = &s
	}
	chosen := withAuthServer(*strategy, req.AuthServerURL)
	strategy = &chosen

	profile := req.profile()
	m.mu.Lock()
	if m.session.ServerURL != target || m.session.Strategy == nil || *m.session.Strategy != chosen {
		m.adoptLocked(target, chosen)
	}
	m.profile = profile
	m.unlock()

	req.Strategy = strategy
	switch {
	case !strategy.NeedsCredentials():
	case strategy.Kind == KindNative && req.Password == "" && m.storedToken(ctx, profile.serverURL) != "":
	default:
		if ok, err := m.Login(ctx, req); !ok {
			return err
		}
	}

	return m.Connect(ctx)
}

// Restore signs in again with what a previous successful login saved.
func (m *Manager) Restore(ctx context.Context) error {
	rec, err := readRecord(ctx, m.settings, m.secrets)
	if err != nil {
		return fmt.Errorf("failed to read saved session: %w", err)
	}
	if rec.serverURL == "" {
		return fmt.Errorf("%w: no saved server", shared.ErrNotAuthenticated)
	}

	req := LoginRequest{
		ServerURL:     rec.serverURL,
		Port:          rec.port,
		OwnerName:     rec.ownerName,
		Username:      rec.username,
		Password:      rec.password,
		AuthServerURL: rec.authServerURL,
	}
	if d := rec.descriptor; d != nil {
		req.Strategy = &Strategy{Kind: d.Strategy, AuthServerURL: d.Data["auth_server_url"]}
	} else if rec.token != "" {
		req.Strategy = &Strategy{Kind: KindNative}
	}

	m.logger.Info("restoring session", "url", rec.serverURL)
	return m.SignIn(ctx, req)
}

// Disconnect closes the transport and resets the session to Idle, keeping saved credentials.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.resetLocked("")
	m.drop = m.transport != nil
	return m.unlock()
}

// Logout disconnects and deletes stored passwords, tokens and credential descriptors.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.Disconnect(); err != nil {
		m.logger.Warn("transport close failed", "error", err)
	}
	if err := clearSecrets(ctx, m.secrets); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	m.logger.Info("logged out")
	return nil
}

// establish connects the transport, waits for the handshake and runs native auth when needed.
// Once t is superseded it stops touching the transport; the reset that superseded it owns the close.
func (m *Manager) establish(ctx context.Context, t ticket) error {
	m.mu.Lock()
	if !m.currentLocked(t) {
		m.mu.Unlock()
		return superseded("connect", t.target)
	}
	if m.session.State == StateConnected {
		m.mu.Unlock()
		return nil
	}

	strategy := *m.session.Strategy
	if strategy.PreConnect() && m.session.State != StateAuthenticated {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s requires login before connecting", shared.ErrNotAuthenticated, strategy.Kind)
	}
	if m.session.State == StateDetected {
		m.setStateLocked(StateAuthenticating, nil)
	}
	header := m.header.Clone()
	creds := m.creds
	profile := m.profile
	pending := m.pending
	ctx, done := m.trackLocked(ctx)
	defer done()
	m.mu.Unlock()

	wsURL, err := shared.WebSocketURL(t.target)
	if err != nil {
		return m.fail(t, connectionError("connect", err))
	}

	select {
	case <-pending:
	case <-ctx.Done():
		return m.fail(t, connectionError("connect", ctx.Err()))
	}

	if err := m.transport.Connect(ctx, wsURL, header); err != nil {
		return m.fail(t, connectionError("connect", err))
	}
	if !m.current(t) {
		return superseded("connect", t.target)
	}

	if err := m.retry.Wait(ctx, m.transport.IsConnected); err != nil {
		m.release(t)
		return m.fail(t, connectionError("connect", err))
	}

	var native nativeResult
	if strategy.Kind == KindNative {
		if !m.current(t) {
			return superseded("authenticate", t.target)
		}
		stored := m.storedToken(ctx, profile.serverURL)
		native, err = authenticateNative(ctx, m.transport, stored, creds, m.logger)
		if err != nil {
			m.release(t)
			return m.fail(t, authError("authenticate", err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(t) {
		return superseded("connect", t.target)
	}

	// Pre-connect strategies were saved by Login.
	if !strategy.PreConnect() {
		rec := profile
		if strategy.Kind == KindNative {
			rec.username = cmp.Or(creds.Username, profile.username)
			rec.token = native.token
			rec.descriptor = &CredentialDescriptor{Strategy: KindNative, Data: map[string]string{"username": rec.username}}
		}
		if err := rec.write(ctx, m.settings, m.secrets); err != nil {
			m.logger.Error("failed to persist session", "error", err)
		}
	}

	m.session.Authenticated = true
	m.session.ServerInfo = m.transport.ServerInfo()
	m.session.LastError = nil
	if native.token != "" {
		m.session.HasToken = true
		m.session.TokenOrigin = native.origin
		if user := cmp.Or(creds.Username, profile.username); user != "" {
			m.session.Username = user
		}
	}
	m.creds.Password = ""

	if m.session.State == StateAuthenticating {
		m.setStateLocked(StateAuthenticated, nil)
	}
	m.setStateLocked(StateConnected, nil)
	m.logger.Info("session connected", "url", t.target, "strategy", strategy.Kind, "token", native.origin)
	return nil
}

// trackLocked derives a context that the next reset cancels. done must be called without mu held.
func (m *Manager) trackLocked(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	m.nextOp++
	id := m.nextOp
	m.ops[id] = cancel
	return ctx, func() {
		cancel()
		m.mu.Lock()
		delete(m.ops, id)
		m.mu.Unlock()
	}
}

func (m *Manager) current(t ticket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(t)
}

// release closes the link opened for t, unless a newer operation already owns the transport.
func (m *Manager) release(t ticket) {
	m.mu.Lock()
	if m.currentLocked(t) {
		m.drop = m.transport != nil
	}
	m.unlock()
}

// unlock releases mu, then closes the transport if a reset asked for it. The close runs
// outside mu because it waits for an in-flight dial to give up.
func (m *Manager) unlock() error {
	if !m.drop {
		m.mu.Unlock()
		return nil
	}
	m.drop = false
	prev := m.pending
	next := make(chan struct{})
	m.pending = next
	m.mu.Unlock()

	defer close(next)
	err := m.transport.Close()
	<-prev
	return err
}

// fail rolls the session back to Detected after a failed login or connect.
func (m *Manager) fail(t ticket, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(t) {
		return fmt.Errorf("%w: %v", shared.ErrSuperseded, err)
	}

	m.session.Authenticated = false
	m.session.HasToken = false
	m.session.TokenOrigin = TokenNone
	m.session.ServerInfo = nil
	m.session.LastError = err
	m.creds = Credentials{}
	m.header = nil

	m.setStateLocked(StateFailed, err)
	m.setStateLocked(StateDetected, err)
	return err
}

func (m *Manager) storedToken(ctx context.Context, serverURL string) string {
	if m.secrets == nil {
		return ""
	}
	if m.settings != nil {
		saved, _, err := m.settings.Get(ctx, SettingServerURL)
		if err != nil || (saved != "" && saved != serverURL) {
			return ""
		}
	}
	token, _, err := m.secrets.Get(ctx, SecretToken)
	if err != nil {
		m.logger.Warn("failed to read stored token", "error", err)
		return ""
	}
	return token
}

// strategyForLocked picks the strategy for a login: the request's, or the one detected for target.
func (m *Manager) strategyForLocked(target string, req LoginRequest) (Strategy, error) {
	if req.Strategy != nil {
		s := withAuthServer(*req.Strategy, req.AuthServerURL)
		if m.session.ServerURL != target || m.session.Strategy == nil || *m.session.Strategy != s {
			m.adoptLocked(target, s)
		}
		return s, nil
	}

	if m.session.ServerURL == target && m.session.Strategy != nil {
		s := withAuthServer(*m.session.Strategy, req.AuthServerURL)
		m.session.Strategy = &s
		return s, nil
	}

	return Strategy{}, validationError("login", "auth strategy for %s has not been detected; detect that exact address or pass a strategy", target)
}

// withAuthServer applies a user-supplied Authelia portal address.
func withAuthServer(s Strategy, override string) Strategy {
	if s.Kind != KindAuthelia || strings.TrimSpace(override) == "" {
		return s
	}
	if portal, err := shared.NormalizeServerURL(override); err == nil {
		s.AuthServerURL = portal
	}
	return s
}

// adoptLocked starts a new generation for target with a strategy that did not come from detection.
func (m *Manager) adoptLocked(target string, s Strategy) {
	m.retargetLocked(target)
	m.setStateLocked(StateDetecting, nil)
	m.session.Strategy = &s
	m.setStateLocked(StateDetected, nil)
}

// retargetLocked invalidates in-flight operations and clears the session for target.
func (m *Manager) retargetLocked(target string) ticket {
	m.resetLocked(target)
	return ticket{gen: m.gen, target: target}
}

// resetLocked starts a new generation. The caller must release mu with unlock so a live
// transport gets closed.
func (m *Manager) resetLocked(target string) {
	m.gen++
	for id, cancel := range m.ops {
		cancel()
		delete(m.ops, id)
	}
	state := m.session.State
	if state >= StateAuthenticating && m.transport != nil {
		m.drop = true
	}
	m.session = Session{ServerURL: target, State: state, UpdatedAt: time.Now()}
	m.creds = Credentials{}
	m.header = nil
	m.setStateLocked(StateIdle, nil)
}

// syncLocked resets a Connected session whose transport has gone away.
func (m *Manager) syncLocked() {
	if m.session.State == StateConnected && !m.transport.IsConnected() {
		m.logger.Warn("connection lost", "url", m.session.ServerURL)
		m.resetLocked("")
	}
}

func (m *Manager) currentLocked(t ticket) bool {
	return m.gen == t.gen && m.session.ServerURL == t.target
}

func (m *Manager) setStateLocked(to State, err error) {
	from := m.session.State
	if from == to {
		return
	}
	if !CanTransition(from, to) {
		m.logger.Error("illegal session transition", "from", from, "to", to)
		return
	}

	m.session.State = to
	m.session.UpdatedAt = time.Now()
	m.logger.Debug("session state", "from", from, "to", to, "url", m.session.ServerURL)

	if m.notify != nil {
		select {
		case m.notify <- StateChange{From: from, To: to, ServerURL: m.session.ServerURL, Err: err}:
		default:
		}
	}
}

func superseded(op, target string) error {
	return fmt.Errorf("%w: %s for %s", shared.ErrSuperseded, op, target)
}

func (r LoginRequest) target() (string, error) {
	if strings.TrimSpace(r.ServerURL) == "" {
		return "", validationError("login", "server address is required")
	}
	if strings.TrimSpace(r.OwnerName) == "" {
		return "", validationError("login", "owner name is required")
	}
	if r.Port < 0 || r.Port > 65535 {
		return "", validationError("login", "port %d is out of range", r.Port)
	}
	if strings.TrimSpace(r.AuthServerURL) != "" {
		if _, err := shared.NormalizeServerURL(r.AuthServerURL); err != nil {
			return "", &Error{Kind: shared.ErrValidation, Op: "login", Err: err}
		}
	}

	target, err := Address(r.ServerURL, r.Port)
	if err != nil {
		return "", &Error{Kind: shared.ErrValidation, Op: "login", Err: err}
	}
	return target, nil
}

func (r LoginRequest) profile() record {
	base, _ := shared.NormalizeServerURL(r.ServerURL)
	return record{
		serverURL: base,
		port:      r.Port,
		ownerName: strings.TrimSpace(r.OwnerName),
		username:  strings.TrimSpace(r.Username),
	}
}
