package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/models"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPingInterval   = 30 * time.Second
	writeWait             = 10 * time.Second
)

// Options configures a [Client]. Zero values select defaults.
type Options struct {
	Logger         *log.Logger
	Dialer         *websocket.Dialer
	RequestTimeout time.Duration
	PingInterval   time.Duration
	DeviceName     string
	TokenName      string
	OnEvent        func(Event)
	Breaker        *gobreaker.Settings
}

// Client is a command client over a single WebSocket connection.
type Client struct {
	logger     *log.Logger
	dialer     *websocket.Dialer
	timeout    time.Duration
	ping       time.Duration
	deviceName string
	tokenName  string
	onEvent    func(Event)

	cb *gobreaker.CircuitBreaker[json.RawMessage]

	connMu sync.RWMutex
	link   *link

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	connected atomic.Bool
	info      atomic.Pointer[models.ServerInfo]
}

// link is one dialed connection. done closes when the connection is torn down.
type link struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (l *link) shut() {
	l.once.Do(func() {
		close(l.done)
		l.conn.Close()
	})
}

type pendingCall struct {
	command string
	parts   []json.RawMessage
	ch      chan callResult
}

type callResult struct {
	raw json.RawMessage
	err error
}

// New creates a [Client]. It does not dial until [Client.Connect].
func New(opts Options) *Client {
	c := &Client{
		logger:     opts.Logger,
		dialer:     opts.Dialer,
		timeout:    opts.RequestTimeout,
		ping:       opts.PingInterval,
		deviceName: opts.DeviceName,
		tokenName:  opts.TokenName,
		onEvent:    opts.OnEvent,
		pending:    make(map[string]*pendingCall),
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second, EnableCompression: true}
	}
	if c.timeout <= 0 {
		c.timeout = defaultRequestTimeout
	}
	if c.ping <= 0 {
		c.ping = defaultPingInterval
	}
	if c.deviceName == "" {
		c.deviceName = "massctl"
	}
	if c.tokenName == "" {
		c.tokenName = c.deviceName
	}
	c.cb = newBreaker(opts.Breaker, c.logger)
	return c
}

// Connect dials url, sending header with the upgrade request.
//
// It returns once the socket is open. The server handshake arrives asynchronously; see [Client.IsConnected].
func (c *Client) Connect(ctx context.Context, url string, header http.Header) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrConnection, err)
	}
	if c.link != nil {
		return nil
	}

	c.logger.Info("connecting", "url", url)

	conn, resp, err := c.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: websocket dial failed (status %d): %v", shared.ErrConnection, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: websocket dial failed: %v", shared.ErrConnection, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	l := &link{conn: conn, done: make(chan struct{})}
	c.link = l

	l.wg.Add(2)
	go c.listen(l)
	go c.keepAlive(l)

	return nil
}

// IsConnected reports whether the socket is open and the server handshake has been received.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// ServerInfo returns the handshake received on the current connection, or nil.
func (c *Client) ServerInfo() *models.ServerInfo {
	info := c.info.Load()
	if info == nil {
		return nil
	}
	cp := *info
	return &cp
}

// Close sends a close frame, tears down the connection and fails any in-flight calls.
func (c *Client) Close() error {
	c.connMu.Lock()
	l := c.link
	c.link = nil
	c.connMu.Unlock()

	if l == nil {
		return nil
	}

	c.connected.Store(false)
	c.info.Store(nil)

	c.writeMu.Lock()
	err := l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("close frame not sent", "error", err)
	}

	l.shut()
	l.wg.Wait()
	c.failPending(shared.ErrNotConnected)
	c.logger.Info("disconnected")
	return nil
}

// Call sends command and decodes its result into result, which may be nil.
func (c *Client) Call(ctx context.Context, command string, args map[string]any, result any) error {
	raw, err := c.cb.Execute(func() (json.RawMessage, error) {
		return c.send(ctx, command, args)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", shared.ErrServiceUnavailable, command, err)
	}
	if err != nil {
		return err
	}

	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", command, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, command string, args map[string]any) (json.RawMessage, error) {
	c.connMu.RLock()
	l := c.link
	c.connMu.RUnlock()

	if l == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotConnected, command)
	}
	// The link may belong to a newer session than the caller's.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := Request{MessageID: uuid.NewString(), Command: command, Args: args}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", command, err)
	}

	call := &pendingCall{command: command, ch: make(chan callResult, 1)}
	c.pendingMu.Lock()
	c.pending[req.MessageID] = call
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.MessageID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = l.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send %s: %v", shared.ErrConnection, command, err)
	}

	c.logger.Debug("command sent", "command", command, "message_id", req.MessageID)

	select {
	case res := <-call.ch:
		return res.raw, res.err
	case <-l.done:
		return nil, fmt.Errorf("%w: connection closed during %s", shared.ErrNotConnected, command)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrTimeout, command, ctx.Err())
	}
}

func (c *Client) listen(l *link) {
	defer l.wg.Done()

	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Info("connection closed by server")
				} else {
					c.logger.Warn("read failed", "error", err)
				}
			}
			c.drop(l)
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) keepAlive(l *link) {
	defer l.wg.Done()

	ticker := time.NewTicker(c.ping)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn("keep-alive failed", "error", err)
				c.drop(l)
				return
			}
		}
	}
}

// drop tears down l if it is still the active connection.
func (c *Client) drop(l *link) {
	c.connMu.Lock()
	if c.link == l {
		c.link = nil
		c.connected.Store(false)
		c.info.Store(nil)
	}
	c.connMu.Unlock()

	l.shut()
	c.failPending(shared.ErrNotConnected)
}

func (c *Client) handleMessage(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.Warn("failed to parse frame", "error", err)
		return
	}

	switch {
	case f.isServerInfo():
		var info models.ServerInfo
		if err := json.Unmarshal(data, &info); err != nil {
			c.logger.Warn("failed to parse server info", "error", err)
			return
		}
		c.info.Store(&info)
		c.connected.Store(true)
		c.logger.Info("connected", "server_id", info.ServerID, "version", info.ServerVersion, "schema", info.SchemaVersion)
	case f.isEvent():
		c.logger.Debug("event", "event", f.Event, "object_id", f.ObjectID)
		if c.onEvent != nil {
			c.onEvent(Event{Event: f.Event, ObjectID: f.ObjectID, Data: f.Data})
		}
	case f.MessageID != "":
		c.resolve(f)
	default:
		c.logger.Debug("unhandled frame", "size", len(data))
	}
}

func (c *Client) resolve(f frame) {
	c.pendingMu.Lock()
	call, ok := c.pending[f.MessageID]
	if ok && f.Partial && !f.isError() {
		call.parts = append(call.parts, f.Result)
		c.pendingMu.Unlock()
		return
	}
	if ok {
		delete(c.pending, f.MessageID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("response for unknown message", "message_id", f.MessageID)
		return
	}

	var res callResult
	switch {
	case f.isError():
		res.err = &RPCError{Command: call.command, Code: f.ErrorCode, Details: f.Details}
	case len(call.parts) > 0:
		res.raw, res.err = joinPartials(append(call.parts, f.Result))
	default:
		res.raw = f.Result
	}
	call.ch <- res
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, call := range c.pending {
		select {
		case call.ch <- callResult{err: fmt.Errorf("%w: %s", err, call.command)}:
		default:
		}
		delete(c.pending, id)
	}
}
