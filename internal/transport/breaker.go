package transport

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

const breakerName = "music-assistant-ws"

// newBreaker builds the command circuit breaker.
//
// The default opens after 5 consecutive transport failures and probes again after 30s.
func newBreaker(custom *gobreaker.Settings, logger *log.Logger) *gobreaker.CircuitBreaker[json.RawMessage] {
	st := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	if custom != nil {
		st = *custom
	}

	st.IsSuccessful = countsAsSuccess
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
	}

	return gobreaker.NewCircuitBreaker[json.RawMessage](st)
}

// countsAsSuccess treats server-side command errors and caller cancellation as healthy responses.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, shared.ErrRPC) || errors.Is(err, context.Canceled)
}
