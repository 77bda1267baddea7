package testing

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/desertthunder/massctl/internal/models"
)

// FakeTransport is an in-memory stand-in for the socket client used by the auth manager.
type FakeTransport struct {
	mu    sync.Mutex
	open  bool
	calls map[string]int

	// ConnectErr fails Connect.
	ConnectErr error
	// NeverReady keeps IsConnected false after a successful Connect.
	NeverReady bool
	// Info is returned by ServerInfo once connected.
	Info models.ServerInfo
	// Tokens lists tokens AuthenticateWithToken accepts.
	Tokens map[string]bool
	// Users maps usernames to passwords LoginWithCredentials accepts.
	Users map[string]string
	// LongLived is returned by CreateLongLivedToken; empty makes it fail.
	LongLived string
	// Hold parks Connect for a URL until its channel is closed, ignoring the context like a
	// dial that is already past the point of cancellation.
	Hold map[string]chan struct{}

	LastURL    string
	LastHeader http.Header
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		calls:  make(map[string]int),
		Tokens: make(map[string]bool),
		Users:  make(map[string]string),
		Info:   models.ServerInfo{ServerID: "fake", ServerVersion: "2.6.0", SchemaVersion: 28},
	}
}

func (f *FakeTransport) record(name string) {
	f.calls[name]++
}

// Calls reports how many times the named method was invoked.
func (f *FakeTransport) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeTransport) Connect(_ context.Context, url string, header http.Header) error {
	f.mu.Lock()
	f.record("Connect")
	hold := f.Hold[url]
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastURL, f.LastHeader = url, header
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.open = true
	return nil
}

func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open && !f.NeverReady
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.record("Close")
	}
	f.open = false
	return nil
}

func (f *FakeTransport) ServerInfo() *models.ServerInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil
	}
	info := f.Info
	return &info
}

func (f *FakeTransport) LoginWithCredentials(_ context.Context, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LoginWithCredentials")
	if want, ok := f.Users[username]; !ok || want != password {
		return "", errors.New("invalid credentials")
	}
	token := "session-" + username
	f.Tokens[token] = true
	return token, nil
}

func (f *FakeTransport) AuthenticateWithToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AuthenticateWithToken")
	return f.Tokens[token], nil
}

func (f *FakeTransport) CreateLongLivedToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateLongLivedToken")
	if f.LongLived == "" {
		return "", errors.New("long-lived tokens disabled")
	}
	f.Tokens[f.LongLived] = true
	return f.LongLived, nil
}
