package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerState(t *testing.T) {
	errA := errors.New("calendar not found")
	errB := errors.New("rate limited")

	tests := []struct {
		name        string
		outcomes    []error
		wantTripped bool
		wantCount   int
	}{
		{"three identical trip", []error{errA, errA, errA}, true, 3},
		{"two identical do not trip", []error{errA, errA}, false, 2},
		{"different message restarts at one", []error{errA, errA, errB}, false, 1},
		{"success resets", []error{errA, errA, nil, errA}, false, 1},
		{"identical text from distinct values", []error{errA, errors.New("calendar not found"), errA}, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b breakerState
			var tripped bool
			for _, err := range tt.outcomes {
				tripped = b.record(err)
			}
			assert.Equal(t, tt.wantTripped, tripped)
			assert.Equal(t, tt.wantCount, b.consecutive)
		})
	}
}
