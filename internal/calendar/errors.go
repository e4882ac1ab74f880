package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// APIError is a failed Calendar API call with its HTTP status.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation == "" {
		return fmt.Sprintf("calendar API error (%d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("calendar %s failed (%d): %s", e.Operation, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus implements the status accessor used by StatusCode.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

type statusCoder interface {
	HTTPStatus() int
}

// StatusCode returns the HTTP status carried by err, or 0 when err has none.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsTransient reports whether err is worth retrying: 429 or any 5xx.
func IsTransient(err error) bool {
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= 500
}

// IsClientError reports whether err is a non-retryable 4xx.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// wrapAPIError converts a googleapi error into an APIError. Other errors are
// wrapped with the operation name and keep a zero status.
func wrapAPIError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &APIError{Operation: operation, StatusCode: gerr.Code, Message: msg, Err: err}
	}
	return fmt.Errorf("calendar %s failed: %w", operation, err)
}
