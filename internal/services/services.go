// package services implements the HTTP side of the Music Assistant server API
package services

import (
	"fmt"

	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
)

// CommandRequest is the body accepted by the server's /api endpoint.
type CommandRequest struct {
	Command   string         `json:"command"`
	Args      map[string]any `json:"args,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
}

// CommandError is the error payload the server returns for a failed command.
type CommandError struct {
	ErrorCode int    `json:"error_code"`
	Details   string `json:"details"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("error %d: %s", e.ErrorCode, e.Details)
}

// Decode unmarshals a JSON response body into v.
//
// Non-2xx responses return [shared.ErrAPIRequest], wrapping a [CommandError] when the body carries one.
func (r *APIResponse) Decode(v any) error {
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		var cmdErr CommandError
		if r.IsJSON && json.Unmarshal(r.Body, &cmdErr) == nil && cmdErr.Details != "" {
			return fmt.Errorf("%w: status %d: %w", shared.ErrAPIRequest, r.StatusCode, &cmdErr)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, r.StatusCode)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
