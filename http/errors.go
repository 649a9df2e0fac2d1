package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for HTTP operations.
var (
	// ErrNoResponse indicates no response was received from the server.
	ErrNoResponse = errors.New("no response received")

	// ErrRequestFailed indicates the request itself failed (network error).
	ErrRequestFailed = errors.New("http request failed")

	// ErrUnauthorized indicates the credential was missing or rejected (401/403).
	ErrUnauthorized = errors.New("unauthorized")
)

// RateLimitError indicates the server rate limited the request.
// It includes the status code and optional Retry-After duration.
type RateLimitError struct {
	// StatusCode is the HTTP status code (429 or 503)
	StatusCode int
	// RetryAfter indicates how long to wait before retrying
	RetryAfter time.Duration
}

// Error returns a string representation of the rate limit error.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError indicates a non-2xx HTTP response.
type HTTPError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body is the response body
	Body []byte
}

// Error returns a string representation of the HTTP error. When the body is a
// short JSON error document its message is included.
func (e *HTTPError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("http error: status %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// Is reports 401 and 403 responses as ErrUnauthorized.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && IsAuthStatus(e.StatusCode)
}

// Message extracts a human readable message from the error body, if any.
func (e *HTTPError) Message() string {
	return errorMessage(e.Body)
}

// IsAuthStatus reports whether the status code means the credential was rejected.
func IsAuthStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// IsClientError checks if status code is a client error (4xx).
func IsClientError(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500
}

// IsServerError checks if status code is a server error (5xx).
func IsServerError(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}

// errorMessage pulls "error", "message" or "msg" out of a JSON body. Plain text
// bodies up to 200 bytes are returned trimmed.
func errorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "{") {
		var doc map[string]any
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return ""
		}
		for _, key := range []string{"error", "message", "msg", "detail"} {
			if s, ok := doc[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}
	if len(trimmed) > 200 || strings.HasPrefix(trimmed, "<") {
		return ""
	}
	return trimmed
}
