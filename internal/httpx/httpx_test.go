package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{
		200: false, 400: false, 401: false, 404: false,
		408: true, 429: true, 500: true, 502: true, 503: true,
	} {
		assert.Equal(t, want, IsRetryableStatus(code), "status %d", code)
	}
}

func TestIsRetryable(t *testing.T) {
	ctx := context.Background()

	assert.False(t, IsRetryable(ctx, nil))
	assert.True(t, IsRetryable(ctx, &StatusError{StatusCode: 503}))
	assert.False(t, IsRetryable(ctx, &StatusError{StatusCode: 400}))
	assert.True(t, IsRetryable(ctx, context.DeadlineExceeded))
	assert.False(t, IsRetryable(ctx, errors.New("bad json")))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, IsRetryable(canceled, &StatusError{StatusCode: 503}), "caller gave up")
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	assert.Equal(t, 3*time.Second, RetryAfter(resp, time.Second, 10*time.Second))
	assert.Equal(t, 2*time.Second, RetryAfter(resp, time.Second, 2*time.Second))
	assert.Equal(t, time.Second, RetryAfter(nil, time.Second, 0))
}

func TestJitter(t *testing.T) {
	assert.Zero(t, Jitter(0))
	for range 50 {
		d := Jitter(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestSleep_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
