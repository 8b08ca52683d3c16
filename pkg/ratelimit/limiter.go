// Package ratelimit implements the client-side request budget for the
// TechDirect API: a counting window limiter where each admitted request
// returns its unit of capacity after its own window elapses.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	admittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_rate_limit_admitted_total",
		Help: "Total requests admitted by the client-side rate limiter",
	})

	rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_rate_limit_rejected_total",
		Help: "Total requests rejected by the client-side rate limiter",
	})

	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dellapi_rate_limit_remaining",
		Help: "Remaining request budget in the current window",
	})
)

// ErrLimitExceeded is returned by Admit when the window budget is exhausted.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// DefaultMaxRequests is the default per-window budget. This is a client-side
// courtesy throttle, not the vendor's real quota.
const DefaultMaxRequests = 50

// DefaultWindow is the decay period for one admitted request.
const DefaultWindow = 60 * time.Second

// Limiter counts requests in a rolling fashion: each admitted request
// increments the counter and schedules its own decrement after the window,
// measured from admission. There is no global window reset.
type Limiter struct {
	max    int
	window time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	counter int

	// afterFunc is swappable for tests.
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewLimiter creates a limiter with the given per-window maximum. Values
// below 1 fall back to DefaultMaxRequests.
func NewLimiter(max int, logger zerolog.Logger) *Limiter {
	return NewLimiterWindow(max, DefaultWindow, logger)
}

// NewLimiterWindow creates a limiter with an explicit window duration.
func NewLimiterWindow(max int, window time.Duration, logger zerolog.Logger) *Limiter {
	if max < 1 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		max:       max,
		window:    window,
		logger:    logger.With().Str("component", "rate-limiter").Logger(),
		afterFunc: time.AfterFunc,
	}
	budgetRemaining.Set(float64(max))
	return l
}

// Admit consumes one unit of budget. It never blocks: when the counter is at
// the maximum it fails immediately with ErrLimitExceeded. Each admitted
// request restores its unit after the window elapses.
func (l *Limiter) Admit() error {
	l.mu.Lock()
	if l.counter >= l.max {
		l.mu.Unlock()
		rejectedTotal.Inc()
		l.logger.Warn().
			Int("max_requests", l.max).
			Msg("Request rejected by client-side rate limiter")
		return ErrLimitExceeded
	}
	l.counter++
	remaining := l.max - l.counter
	l.mu.Unlock()

	admittedTotal.Inc()
	budgetRemaining.Set(float64(remaining))

	l.afterFunc(l.window, func() {
		l.mu.Lock()
		if l.counter > 0 {
			l.counter--
		}
		remaining := l.max - l.counter
		l.mu.Unlock()
		budgetRemaining.Set(float64(remaining))
	})

	return nil
}

// Remaining returns the unused budget in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := l.max - l.counter
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Max returns the configured per-window maximum.
func (l *Limiter) Max() int {
	return l.max
}
