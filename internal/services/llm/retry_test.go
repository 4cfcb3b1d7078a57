package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New("rate_limit_error: too many requests")))
	assert.False(t, IsRateLimitError(errors.New("connection reset")))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota. Please retry in 12.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 12500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("429")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(nil))
}

func TestCalculateBackoff(t *testing.T) {
	c := NewDefaultRetryConfig()

	assert.Equal(t, 2*time.Second, c.CalculateBackoff(0, errors.New("timeout")))
	assert.Equal(t, 4*time.Second, c.CalculateBackoff(1, errors.New("timeout")))

	rateLimited := errors.New("429 too many requests")
	assert.Equal(t, DefaultInitialBackoff, c.CalculateBackoff(0, rateLimited))
	assert.Equal(t, 15*time.Second, c.CalculateBackoff(1, rateLimited))
	assert.Equal(t, DefaultMaxBackoff, c.CalculateBackoff(10, rateLimited))

	withDelay := errors.New("429 Please retry in 4s")
	assert.Equal(t, 5*time.Second, c.CalculateBackoff(0, withDelay))
}
