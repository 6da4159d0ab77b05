package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostRateLimiterDisabled(t *testing.T) {
	t.Parallel()

	var nilLimiter *HostRateLimiter
	require.NoError(t, nilLimiter.Wait(context.Background(), "https://a.test/x"))
	require.NoError(t, NewHostRateLimiter(0).Wait(context.Background(), "https://a.test/x"))
}

func TestHostRateLimiterPerHost(t *testing.T) {
	t.Parallel()

	limiter := NewHostRateLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background(), "https://a.test/1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "https://a.test/2"), "same host must wait for the next token")
	assert.NoError(t, limiter.Wait(ctx, "https://b.test/1"))
}

func TestHostRateLimiterRejectsHostlessURL(t *testing.T) {
	t.Parallel()

	require.Error(t, NewHostRateLimiter(time.Second).Wait(context.Background(), "/relative/path"))
}
