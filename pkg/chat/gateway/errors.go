package gateway

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrEmptyResponse = errors.New("empty response from chat service")
	ErrUnauthorized  = errors.New("unauthorized")
	// ErrInvalidID is returned for ids that cannot be a single path segment.
	ErrInvalidID = errors.New("invalid id")
)

// APIError is a non-2xx answer from the service. Message is the server-supplied
// explanation, when there was one.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat service error (HTTP %d) on %s: %s", e.StatusCode, e.Path, e.Message)
	}
	return fmt.Sprintf("chat service error (HTTP %d) on %s", e.StatusCode, e.Path)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// ServerMessage extracts the server-supplied message from err, if any.
func ServerMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}
