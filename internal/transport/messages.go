package transport

import (
	"fmt"

	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
)

// Request is a command sent to the server.
type Request struct {
	MessageID string         `json:"message_id"`
	Command   string         `json:"command"`
	Args      map[string]any `json:"args,omitempty"`
}

// Event is a server push notification.
type Event struct {
	Event    string          `json:"event"`
	ObjectID string          `json:"object_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// frame is the union of every message shape the server sends.
type frame struct {
	MessageID string          `json:"message_id"`
	Result    json.RawMessage `json:"result"`
	ErrorCode int             `json:"error_code"`
	Details   string          `json:"details"`
	Partial   bool            `json:"partial"`

	Event    string          `json:"event"`
	ObjectID string          `json:"object_id"`
	Data     json.RawMessage `json:"data"`

	ServerID string `json:"server_id"`
}

func (f frame) isServerInfo() bool { return f.MessageID == "" && f.Event == "" && f.ServerID != "" }
func (f frame) isEvent() bool      { return f.MessageID == "" && f.Event != "" }
func (f frame) isError() bool      { return f.ErrorCode != 0 }

// RPCError is a command failure reported by the server.
type RPCError struct {
	Command string
	Code    int
	Details string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s (error %d)", e.Command, e.Details, e.Code)
}

func (e *RPCError) Unwrap() error { return shared.ErrRPC }

// User is the account an auth command resolved to.
type User struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// LoginResult is the payload of "auth/login".
type LoginResult struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
	Error       string `json:"error,omitempty"`
	User        *User  `json:"user,omitempty"`
}

// AuthResult is the payload of "auth".
type AuthResult struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// joinPartials concatenates the JSON arrays delivered across partial frames.
func joinPartials(parts []json.RawMessage) (json.RawMessage, error) {
	var all []json.RawMessage
	for _, p := range parts {
		if len(p) == 0 || string(p) == "null" {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(p, &items); err != nil {
			return nil, fmt.Errorf("partial result is not a list: %w", err)
		}
		all = append(all, items...)
	}
	if all == nil {
		all = []json.RawMessage{}
	}
	return json.Marshal(all)
}
