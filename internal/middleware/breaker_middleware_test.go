package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"payflow/config"
)

func testBreakerConfig() config.ResilienceConfig {
	return config.ResilienceConfig{
		BreakerWindow:        100,
		BreakerFailureRate:   0.5,
		BreakerMinCalls:      10,
		BreakerOpenFor:       30 * time.Second,
		BreakerHalfOpenProbe: 3,
	}
}

func TestBreakerStaysClosedBelowMinCalls(t *testing.T) {
	b := NewCircuitBreaker(testBreakerConfig(), nil)

	for i := 0; i < 9; i++ {
		require.True(t, b.Allow())
		b.Record(true)
	}
	require.True(t, b.Allow(), "must not trip before the minimum call count")
}

func TestBreakerTripsAtFailureRate(t *testing.T) {
	b := NewCircuitBreaker(testBreakerConfig(), nil)

	for i := 0; i < 5; i++ {
		require.True(t, b.Allow())
		b.Record(false)
	}
	for i := 0; i < 5; i++ {
		require.True(t, b.Allow())
		b.Record(true)
	}

	require.False(t, b.Allow(), "5 failures out of 10 reaches the 50% threshold")
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewCircuitBreaker(testBreakerConfig(), nil)
	now := time.Now()
	b.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		b.Record(true)
	}
	require.False(t, b.Allow())

	// Cooldown elapses; exactly three probes are admitted.
	now = now.Add(31 * time.Second)
	for i := 0; i < 3; i++ {
		require.True(t, b.Allow(), "probe %d", i)
	}
	require.False(t, b.Allow(), "no requests beyond the probe budget")

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	require.True(t, b.Allow(), "all probes passed, breaker closes")
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(testBreakerConfig(), nil)
	now := time.Now()
	b.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		b.Record(true)
	}
	now = now.Add(31 * time.Second)
	require.True(t, b.Allow())
	b.Record(true)

	require.False(t, b.Allow(), "a failed probe reopens the breaker")

	// The cooldown restarts from the failed probe.
	now = now.Add(31 * time.Second)
	require.True(t, b.Allow())
}

func TestBreakerMiddlewareShedsLoadWhenOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b := NewCircuitBreaker(testBreakerConfig(), nil)

	router := gin.New()
	router.POST("/v1/payments", BreakerMiddleware(b), func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusInternalServerError, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "CIRCUIT_OPEN")
}
