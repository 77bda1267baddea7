package auth

import (
	"errors"
	"fmt"

	"github.com/desertthunder/massctl/internal/shared"
)

// Error records which operation failed and the error kind, one of
// [shared.ErrValidation], [shared.ErrDetection], [shared.ErrAuth] or [shared.ErrConnection].
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(op, format string, args ...any) error {
	return &Error{Kind: shared.ErrValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func detectionError(op string, err error) error {
	return &Error{Kind: shared.ErrDetection, Op: op, Err: err}
}

func authError(op string, err error) error {
	return &Error{Kind: shared.ErrAuth, Op: op, Err: err}
}

func connectionError(op string, err error) error {
	return &Error{Kind: shared.ErrConnection, Op: op, Err: err}
}

// UserMessage converts an error from this package into a sentence suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ae *Error
	switch {
	case errors.Is(err, shared.ErrSuperseded):
		return "A newer request replaced this one."
	case errors.Is(err, shared.ErrValidation):
		if errors.As(err, &ae) && ae.Err != nil {
			return "Invalid input: " + ae.Err.Error() + "."
		}
		return "Invalid input."
	case errors.Is(err, shared.ErrDetection):
		return "Could not reach the server or recognise its login method. Check the address and try again."
	case errors.Is(err, shared.ErrAuth):
		return "Login failed. Check your username and password and try again."
	case errors.Is(err, shared.ErrConnection):
		return "The server did not accept the connection in time. Try again."
	case errors.Is(err, shared.ErrNotAuthenticated):
		return "Not signed in. Run `massctl auth login` first."
	}
	return err.Error()
}
