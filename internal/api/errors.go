package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrorKind categorizes API failures.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindHTTP      ErrorKind = "http"
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindParse     ErrorKind = "parse"
	KindRemote    ErrorKind = "remote"
)

var (
	// ErrInvalidArgument is returned before any request when an argument is malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotAuthenticated is returned when an authenticated endpoint is called without a token.
	ErrNotAuthenticated = errors.New("not logged in")
)

// Error describes a failed API call.
type Error struct {
	Kind       ErrorKind
	Endpoint   string
	Status     int           // HTTP status, zero for network errors
	Message    string        // server supplied message or body excerpt
	RetryAfter time.Duration // set for KindRateLimit when the server sent Retry-After
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("api %s: execute request: %v", e.Endpoint, e.Err)
	case KindParse:
		return fmt.Sprintf("api %s: decode response: %v", e.Endpoint, e.Err)
	case KindRemote:
		return fmt.Sprintf("api %s: %s", e.Endpoint, e.Message)
	case KindRateLimit:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("api %s returned status %d (retry after %s)", e.Endpoint, e.Status, e.RetryAfter)
		}
		return fmt.Sprintf("api %s returned status %d", e.Endpoint, e.Status)
	default:
		if e.Message != "" {
			return fmt.Sprintf("api %s returned status %d: %s", e.Endpoint, e.Status, e.Message)
		}
		return fmt.Sprintf("api %s returned status %d", e.Endpoint, e.Status)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// RemoteError is the optional error object carried by most response bodies.
type RemoteError struct {
	Message string `json:"message"`
}

// envelope is embedded in every response type so the error object is decoded
// in one place.
type envelope struct {
	Error *RemoteError `json:"error,omitempty"`
}

func (e envelope) remoteFailure() *RemoteError {
	return e.Error
}

type remoteFailer interface {
	remoteFailure() *RemoteError
}

func statusError(endpoint string, resp *http.Response, body []byte) *Error {
	e := &Error{
		Kind:     KindHTTP,
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Message:  excerpt(body),
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = KindAuth
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return e
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func excerpt(body []byte) string {
	const maxExcerpt = 200
	text := strings.TrimSpace(string(body))
	if len(text) > maxExcerpt {
		n := maxExcerpt
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n] + "..."
	}
	return text
}
