package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name   string
		base   time.Duration
		n      int
		jitter time.Duration
		want   time.Duration
	}{
		{"first retry", time.Second, 1, 0, time.Second},
		{"second retry doubles", time.Second, 2, 0, 2 * time.Second},
		{"third retry", time.Second, 3, 0, 4 * time.Second},
		{"jitter added", time.Second, 2, 500 * time.Millisecond, 2500 * time.Millisecond},
		{"capped", time.Second, 6, 0, MaxRetryDelay},
		{"jitter pushes over cap", 29 * time.Second, 1, 999 * time.Millisecond, MaxRetryDelay},
		{"huge attempt", time.Second, 200, 0, MaxRetryDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryDelay(tt.base, tt.n, tt.jitter))
		})
	}
}

func TestExpBackOff_Reset(t *testing.T) {
	b := newExpBackOff(100*time.Millisecond, func() time.Duration { return 0 })
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestDefaultJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := defaultJitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, MaxJitter)
	}
}
