package schedulesdirect

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

// Provider response codes that mean the session token is unusable.
const (
	codeInvalidToken = 4001
	codeTokenExpired = 4006
)

// maxErrorBodySize caps how much of an error response body is kept.
const maxErrorBodySize = 64 * 1024

var (
	// ErrMaxRetriesExceeded is returned when every attempt of a call hit a
	// retryable condition. It deliberately does not wrap the last cause.
	ErrMaxRetriesExceeded = errors.New("schedules direct: max retries exceeded")

	// ErrAuthFailed matches every authentication failure, including AuthError.
	ErrAuthFailed = errors.New("schedules direct: authentication failed")

	// ErrNoToken is returned when the provider accepted the credentials but sent no token.
	ErrNoToken = errors.New("no token received")
)

// StatusError is a non-retryable HTTP error status (4xx other than 429).
// Code and Message are filled from the provider's JSON error body when present.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s (code %d)", e.Method, e.URL, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// Is makes errors.Is(err, driven.ErrTokenRejected) true when the provider
// refused the session token.
func (e *StatusError) Is(target error) bool {
	if target != driven.ErrTokenRejected {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.Code == codeInvalidToken || e.Code == codeTokenExpired
}

// AuthError is returned when the provider answers a token request with a
// non-zero response code.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s (code %d)", e.Message, e.Code)
}

// Is makes errors.Is(err, ErrAuthFailed) true for every AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailed
}

// newStatusError builds a StatusError from resp and closes its body.
func newStatusError(method, url string, resp *http.Response) *StatusError {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		body = nil
	}

	se := &StatusError{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		se.Code = payload.Code
		se.Message = payload.Message
	}
	return se
}
