// Package fred provides an HTTP client for the FRED (Federal Reserve
// Economic Data) REST API with request pacing, automatic retry, and error
// classification.
package fred

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, fred.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("fred: bad request")
	ErrUnauthorized = errors.New("fred: unauthorized")
	ErrForbidden    = errors.New("fred: forbidden")
	ErrNotFound     = errors.New("fred: not found")
	ErrThrottled    = errors.New("fred: throttled")
	ErrServerError  = errors.New("fred: server error")
	ErrUnexpected   = errors.New("fred: unexpected status")
)

// APIError wraps a sentinel error with the HTTP status code, the endpoint
// that failed, and the message FRED put in the error body.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fred: %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody mirrors the JSON error payload FRED returns for non-2xx
// responses: {"error_code":400,"error_message":"Bad Request. ..."}.
type errorBody struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

// errorMessage extracts error_message from a FRED error body, falling back
// to the raw body when it is not the documented JSON shape.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}

	return string(body)
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpected
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
