package testing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/massctl/internal/models"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Handler answers one command. A non-nil *CommandError is sent as an error frame.
type Handler func(args map[string]any) (any, *CommandError)

// CommandError is an error frame sent by [FakeServer].
type CommandError struct {
	Code    int
	Details string
}

// Partial makes [FakeServer] deliver a list result across several frames.
type Partial [][]any

// FakeServer is a Music Assistant stand-in serving /info over HTTP and commands over /ws.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	info     models.ServerInfo
	handlers map[string]Handler
	calls    map[string]int
	conns    []*fakeConn
	gate     func(*http.Request) bool

	// HandshakeDelay postpones the server info frame after upgrade.
	HandshakeDelay time.Duration
	// SkipHandshake suppresses the server info frame entirely.
	SkipHandshake bool
}

type fakeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *fakeConn) write(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WriteJSON(v)
}

// NewFakeServer starts a [FakeServer] that is closed when the test ends.
func NewFakeServer(t *testing.T, info models.ServerInfo) *FakeServer {
	t.Helper()

	s := &FakeServer{
		info:     info,
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/info", s.serveInfo)
	mux.HandleFunc("/ws", s.serveWS)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	t.Cleanup(s.DropConnections)
	return s
}

// Handle registers h for command.
func (s *FakeServer) Handle(command string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = h
}

// Reply registers a handler that always returns result.
func (s *FakeServer) Reply(command string, result any) {
	s.Handle(command, func(map[string]any) (any, *CommandError) { return result, nil })
}

// Gate rejects HTTP and upgrade requests for which allow returns false with 401.
func (s *FakeServer) Gate(allow func(*http.Request) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = allow
}

// Calls reports how many times command was received.
func (s *FakeServer) Calls(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[command]
}

// WSURL returns the socket endpoint.
func (s *FakeServer) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// Push sends an event frame to every open connection.
func (s *FakeServer) Push(event string, data any) {
	s.mu.Lock()
	conns := append([]*fakeConn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range conns {
		c.write(map[string]any{"event": event, "data": data})
	}
}

// DropConnections closes every open socket without a close frame.
func (s *FakeServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *FakeServer) allowed(r *http.Request) bool {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	return gate == nil || gate(r)
}

func (s *FakeServer) serveInfo(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="music"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	info := s.info
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (s *FakeServer) serveWS(w http.ResponseWriter, r *http.Request) {
	if !s.allowed(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &fakeConn{Conn: ws}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	info := s.info
	s.mu.Unlock()

	write := conn.write

	if !s.SkipHandshake {
		if s.HandshakeDelay > 0 {
			time.Sleep(s.HandshakeDelay)
		}
		write(info)
	}

	for {
		var req struct {
			MessageID string         `json:"message_id"`
			Command   string         `json:"command"`
			Args      map[string]any `json:"args"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		s.mu.Lock()
		s.calls[req.Command]++
		h, ok := s.handlers[req.Command]
		s.mu.Unlock()

		if !ok {
			write(map[string]any{"message_id": req.MessageID, "error_code": 1, "details": "invalid command: " + req.Command})
			continue
		}

		result, cmdErr := h(req.Args)
		switch {
		case cmdErr != nil:
			write(map[string]any{"message_id": req.MessageID, "error_code": cmdErr.Code, "details": cmdErr.Details})
		default:
			if parts, ok := result.(Partial); ok {
				for i, p := range parts {
					write(map[string]any{"message_id": req.MessageID, "result": p, "partial": i < len(parts)-1})
				}
				continue
			}
			write(map[string]any{"message_id": req.MessageID, "result": result})
		}
	}
}
