package executor

import (
	"errors"
	"net/http"
)

// StatusFunc extracts the HTTP status carried by err, or 0 when it has none.
type StatusFunc func(err error) int

// WithStatusFunc sets how failures are mapped to HTTP statuses. The default
// reads the first error in the chain with an HTTPStatus() int method.
func WithStatusFunc(f StatusFunc) Option {
	return func(e *Executor) {
		if f != nil {
			e.status = f
		}
	}
}

func httpStatus(err error) int {
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// terminalStatus reports whether code is a 4xx that retrying cannot fix.
func terminalStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
