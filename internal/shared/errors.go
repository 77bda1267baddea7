package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingKey    = fmt.Errorf("secret key not found")

	// Input validation errors, raised before any network activity
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Session errors
	ErrDetection        = fmt.Errorf("auth strategy detection failed")
	ErrAuth             = fmt.Errorf("authentication failed")
	ErrConnection       = fmt.Errorf("connection failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSuperseded       = fmt.Errorf("superseded by a newer request")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Transport and API errors
	ErrNotConnected       = fmt.Errorf("not connected")
	ErrRPC                = fmt.Errorf("server command failed")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
)
