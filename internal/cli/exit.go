package cli

import (
	"errors"
	"fmt"

	"github.com/bringyour/byctl/internal/api"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The API call or wait failed (network, server error, rejected code, ...)
	ExitCommandError = 2 // Command error (bad arguments, not logged in, unreadable config, ...)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// apiFailure wraps an API error, picking ExitCommandError for problems the
// user can fix by changing the invocation or logging in again.
func apiFailure(message string, err error) *ExitError {
	code := ExitFailure
	switch {
	case errors.Is(err, api.ErrInvalidArgument),
		errors.Is(err, api.ErrNotAuthenticated),
		api.IsKind(err, api.KindAuth):
		code = ExitCommandError
	}
	return WrapExitError(code, message, err)
}
