package middleware

import (
	"net/http"
	"sync"
	"time"

	"payflow/config"
	"payflow/internal/transport/httpdto"
	"payflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker trips the payment command surface when too many of the
// last N requests failed with a server error. While open it sheds load
// immediately; after the cooldown a few probe requests decide whether to
// close again.
type CircuitBreaker struct {
	mu sync.Mutex

	state    breakerState
	outcomes []bool
	next     int
	filled   bool

	openedAt     time.Time
	probesInUse  int
	probesPassed int
	probesFailed int

	window      int
	failureRate float64
	minCalls    int
	openFor     time.Duration
	probes      int

	now func() time.Time
	log *logger.Logger
}

func NewCircuitBreaker(cfg config.ResilienceConfig, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		outcomes:    make([]bool, cfg.BreakerWindow),
		window:      cfg.BreakerWindow,
		failureRate: cfg.BreakerFailureRate,
		minCalls:    cfg.BreakerMinCalls,
		openFor:     cfg.BreakerOpenFor,
		probes:      cfg.BreakerHalfOpenProbe,
		now:         time.Now,
		log:         log,
	}
}

// Allow reports whether a request may proceed right now.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.state = breakerHalfOpen
		b.probesInUse = 0
		b.probesPassed = 0
		b.probesFailed = 0
		if b.log != nil {
			b.log.Warnf("circuit breaker half-open, probing")
		}
		fallthrough
	case breakerHalfOpen:
		if b.probesInUse >= b.probes {
			return false
		}
		b.probesInUse++
		return true
	}
	return true
}

// Record feeds one finished request back into the breaker.
func (b *CircuitBreaker) Record(failure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		if failure {
			b.probesFailed++
		} else {
			b.probesPassed++
		}
		if b.probesFailed > 0 {
			b.trip()
			return
		}
		if b.probesPassed >= b.probes {
			b.reset()
		}
	case breakerClosed:
		b.outcomes[b.next] = failure
		b.next++
		if b.next == b.window {
			b.next = 0
			b.filled = true
		}

		total := b.next
		if b.filled {
			total = b.window
		}
		if total < b.minCalls {
			return
		}
		failures := 0
		for i := 0; i < total; i++ {
			if b.outcomes[i] {
				failures++
			}
		}
		if float64(failures)/float64(total) >= b.failureRate {
			b.trip()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = breakerOpen
	b.openedAt = b.now()
	if b.log != nil {
		b.log.Errorf("circuit breaker open for %s", b.openFor)
	}
}

func (b *CircuitBreaker) reset() {
	b.state = breakerClosed
	b.next = 0
	b.filled = false
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
	if b.log != nil {
		b.log.Infof("circuit breaker closed")
	}
}

// BreakerMiddleware guards a route group with the shared breaker. A 5xx
// response counts as a failure.
func BreakerMiddleware(breaker *CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !breaker.Allow() {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("service temporarily unavailable", "CIRCUIT_OPEN"))
			c.Abort()
			return
		}

		c.Next()

		breaker.Record(c.Writer.Status() >= http.StatusInternalServerError)
	}
}
