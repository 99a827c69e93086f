package chatai

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBusy is returned when a message is submitted while another
	// exchange is still sending or streaming.
	ErrBusy = errors.New("an exchange is already in progress")

	// ErrEmptyMessage is returned when the submitted text is blank.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrExchangeAbandoned is returned by a submission whose exchange was
	// abandoned locally (new conversation, navigation, quit).
	ErrExchangeAbandoned = errors.New("exchange abandoned")

	// ErrNotLoggedIn is returned when no credential is stored.
	ErrNotLoggedIn = errors.New("not logged in\n\nRun 'chatai login' first.")
)

// StreamTransportError represents a network or connection failure while
// talking to the streaming endpoint.
type StreamTransportError struct {
	err error
}

func (e *StreamTransportError) Error() string {
	return "stream transport: " + e.err.Error()
}

func (e *StreamTransportError) Unwrap() error {
	return e.err
}

// NewStreamTransportError wraps err as a transport failure.
// Wrapping an error that already is a StreamTransportError returns it as-is.
func NewStreamTransportError(err error) error {
	if IsStreamTransport(err) {
		return err
	}
	return &StreamTransportError{err: err}
}

// MalformedEventError reports a data line whose payload could not be parsed.
type MalformedEventError struct {
	Line string
	err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event %q: %v", e.Line, e.err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.err
}

// NewMalformedEventError records that line could not be parsed.
func NewMalformedEventError(line string, err error) error {
	return &MalformedEventError{Line: line, err: err}
}

// DirectoryUnavailableError reports a failed conversation listing or
// history fetch.
type DirectoryUnavailableError struct {
	Op  string
	err error
}

func (e *DirectoryUnavailableError) Error() string {
	return fmt.Sprintf("directory unavailable (%s): %v", e.Op, e.err)
}

func (e *DirectoryUnavailableError) Unwrap() error {
	return e.err
}

// NewDirectoryUnavailableError wraps err as a directory failure of op.
func NewDirectoryUnavailableError(op string, err error) error {
	return &DirectoryUnavailableError{Op: op, err: err}
}

// AuthRejectedError reports that the server refused the credential.
type AuthRejectedError struct {
	Status int
	Body   string
}

func (e *AuthRejectedError) Error() string {
	msg := fmt.Sprintf("credential rejected (HTTP %d)", e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg + "\n\nRun 'chatai login' to sign in again."
}

// IsAuthStatus reports whether an HTTP status code means the credential
// was rejected.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsStreamTransport returns true if err is a StreamTransportError.
func IsStreamTransport(err error) bool {
	var target *StreamTransportError
	return errors.As(err, &target)
}

// IsMalformedEvent returns true if err is a MalformedEventError.
func IsMalformedEvent(err error) bool {
	var target *MalformedEventError
	return errors.As(err, &target)
}

// IsDirectoryUnavailable returns true if err is a DirectoryUnavailableError.
func IsDirectoryUnavailable(err error) bool {
	var target *DirectoryUnavailableError
	return errors.As(err, &target)
}

// IsAuthRejected returns true if err is an AuthRejectedError.
func IsAuthRejected(err error) bool {
	var target *AuthRejectedError
	return errors.As(err, &target)
}
