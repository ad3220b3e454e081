package common

import (
	"errors"
	"fmt"
)

var (
	ErrRequestFailed  = errors.New("provider request failed")
	ErrInvalidPayload = errors.New("unexpected provider payload")
	ErrMissingRemote  = errors.New("remote owner/repo unknown")
)

// HTTPError is returned for any non-2xx provider response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrRequestFailed
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
