package assist

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredential means the backend has no API key configured. The
	// assistant is unavailable, everything else keeps working.
	ErrNoCredential = errors.New("no API key configured (run: kiln key set)")
	// ErrInvalidResponse means the backend answered with something that
	// could not be parsed.
	ErrInvalidResponse = errors.New("invalid response from assistant")
)

// RemoteError is an error reported by the backend itself.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("assistant error (%d): %s", e.StatusCode, e.Message)
	}
	return "assistant error: " + e.Message
}

// TransportError wraps a failure to reach the backend at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "cannot reach assistant: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Unavailable reports whether err means the assistant cannot be used at all
// in the current setup, as opposed to a single failed call.
func Unavailable(err error) bool {
	return errors.Is(err, ErrNoCredential) || errors.Is(err, ErrNoBackend)
}
