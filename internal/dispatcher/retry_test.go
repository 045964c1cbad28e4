package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{
		Base:       2 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		MaxRetries: 5,
	}

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // would be 32s uncapped; clamped to max
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Delay(tt.retryCount))
	}
}

func TestRetryPolicyDelayFloorsBelowOne(t *testing.T) {
	policy := RetryPolicy{Base: 2 * time.Second, Max: 30 * time.Second, Multiplier: 2.0}
	assert.Equal(t, 2*time.Second, policy.Delay(0))
	assert.Equal(t, 2*time.Second, policy.Delay(-3))
}
