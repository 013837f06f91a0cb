package dashapi

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError reports a transport failure: the request never produced an
// HTTP response (connection refused, timeout, cancelled context).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response. Message carries the server's
// {"error": ...} body when one was sent.
type HTTPError struct {
	Op      string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: http %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// DecodeError reports a response body that does not match the expected
// shape or violates a payload invariant.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError is raised locally, before any request is issued, when a
// caller-supplied input is unusable. Message is shown to the user verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// MsgEmptyText is the validation message for blank sentiment input.
const MsgEmptyText = "Please enter some text."

// IsTemporary reports whether err is worth retrying at the caller level:
// transport failures and 5xx responses. Decode and validation failures are
// permanent, as are 4xx responses.
func IsTemporary(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= 500
	}
	return false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}
