package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_DelayBackoff(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}

func TestRetryPolicy_DelayCapsAtMax(t *testing.T) {
	p := RetryPolicy{InitialDelayMs: 1000, MaxDelayMs: 5000, BackoffMultiplier: 2}

	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestRetryPolicy_DelayFloorsAtAttemptOne(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, p.Delay(1), p.Delay(0))
}
