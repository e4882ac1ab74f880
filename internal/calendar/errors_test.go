package calendar

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      int
		transient bool
		client    bool
	}{
		{"nil", nil, 0, false, false},
		{"plain error", errors.New("boom"), 0, false, false},
		{"api error 404", &APIError{StatusCode: 404}, 404, false, true},
		{"wrapped api error 429", fmt.Errorf("ctx: %w", &APIError{StatusCode: 429}), 429, true, false},
		{"googleapi 503", &googleapi.Error{Code: 503}, 503, true, false},
		{"googleapi 403", &googleapi.Error{Code: 403}, 403, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, StatusCode(tt.err))
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.client, IsClientError(tt.err))
		})
	}
}

func TestWrapAPIError(t *testing.T) {
	assert.NoError(t, wrapAPIError("get", nil))

	err := wrapAPIError("get", &googleapi.Error{Code: 404, Message: "Not Found"})
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "calendar get failed (404): Not Found", err.Error())
	assert.True(t, IsNotFound(err))

	plain := wrapAPIError("list", errors.New("dial tcp: refused"))
	assert.Equal(t, 0, StatusCode(plain))
	assert.Contains(t, plain.Error(), "calendar list failed")
}
