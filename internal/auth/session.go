package auth

import (
	"time"

	"github.com/desertthunder/massctl/internal/models"
)

// State is a step of the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateUndetected
	StateDetected
	StateAuthenticating
	StateFailed
	StateAuthenticated
	StateConnected
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateDetecting:      "detecting",
	StateUndetected:     "undetected",
	StateDetected:       "detected",
	StateAuthenticating: "authenticating",
	StateFailed:         "failed",
	StateAuthenticated:  "authenticated",
	StateConnected:      "connected",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// transitions lists the legal successors of each state. Idle and Detecting are reachable
// from everywhere (reset and re-detection) and are not repeated here.
var transitions = map[State][]State{
	StateDetecting:      {StateDetected, StateUndetected},
	StateDetected:       {StateAuthenticating},
	StateAuthenticating: {StateAuthenticated, StateFailed},
	StateFailed:         {StateDetected},
	StateAuthenticated:  {StateConnected, StateFailed},
}

// CanTransition reports whether the session may move from one state to another.
func CanTransition(from, to State) bool {
	if to == StateIdle || to == StateDetecting {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TokenOrigin records where the active native token came from.
type TokenOrigin string

const (
	TokenNone      TokenOrigin = ""
	TokenStored    TokenOrigin = "stored"
	TokenIssued    TokenOrigin = "freshly_issued"
	TokenLongLived TokenOrigin = "long_lived"
)

// Session is a read-only snapshot of the live session.
type Session struct {
	ServerURL     string
	Strategy      *Strategy
	State         State
	Authenticated bool
	HasToken      bool
	TokenOrigin   TokenOrigin
	Username      string
	ServerInfo    *models.ServerInfo
	LastError     error
	UpdatedAt     time.Time
}

// StateChange is published on every transition.
type StateChange struct {
	From      State
	To        State
	ServerURL string
	Err       error
}
