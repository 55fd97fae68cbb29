package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billsync/pkg/webhook"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		backoff  webhook.ExponentialBackoff
		attempts []int
		want     []time.Duration
	}{
		{
			name:     "defaults",
			backoff:  webhook.ExponentialBackoff{},
			attempts: []int{1, 2, 3, 4, 5, 6},
			want:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second},
		},
		{
			name: "custom multiplier with cap",
			backoff: webhook.ExponentialBackoff{
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      3,
			},
			attempts: []int{1, 2, 3, 4},
			want:     []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 4500 * time.Millisecond, 5 * time.Second},
		},
		{
			name:     "non positive attempt",
			backoff:  webhook.ExponentialBackoff{},
			attempts: []int{0, -1},
			want:     []time.Duration{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for i, attempt := range tt.attempts {
				assert.Equal(t, tt.want[i], tt.backoff.NextInterval(attempt), "attempt %d", attempt)
			}
		})
	}
}

func TestExponentialBackoffJitter(t *testing.T) {
	t.Parallel()

	b := webhook.ExponentialBackoff{InitialInterval: time.Second, JitterFactor: 0.5}
	for range 20 {
		got := b.NextInterval(3)
		assert.GreaterOrEqual(t, got, 2*time.Second)
		assert.LessOrEqual(t, got, 6*time.Second)
	}
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := webhook.FixedBackoff{Interval: 250 * time.Millisecond}
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
	assert.Equal(t, 250*time.Millisecond, b.NextInterval(1))
	assert.Equal(t, 250*time.Millisecond, b.NextInterval(10))
}
