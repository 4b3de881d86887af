package cli

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/httpbridge/pkg/bridge"
)

// Exit codes for the httpbridge CLI
const (
	// ExitSuccess indicates every request completed
	ExitSuccess = 0

	// ExitRequestFailure indicates a response failed --fail or an expectation
	ExitRequestFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a transport failure
	ExitNetworkError = 4

	// ExitTimeout indicates a request timed out
	ExitTimeout = 5

	// ExitUsageError indicates invalid CLI usage or request arguments
	ExitUsageError = 64

	// ExitInternalError indicates an engine failure
	ExitInternalError = 70
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitErr(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// exitCodeFor maps a bridge code to a process exit code.
func exitCodeFor(code bridge.Code) int {
	switch code {
	case bridge.OK:
		return ExitSuccess
	case bridge.CodeInvalidArgument:
		return ExitUsageError
	case bridge.CodeTransport:
		return ExitNetworkError
	case bridge.CodeTimeout:
		return ExitTimeout
	default:
		return ExitInternalError
	}
}

// ExitCode extracts the exit code from an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitUsageError
}
