package httpclient

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/infrastructure/logger"
)

type breakerState int

const (
	stateClosed breakerState = iota + 1
	stateOpen
	stateHalfOpen
)

// ErrUpstreamOpen is returned while an upstream's breaker is open;
// callers treat it like any other delivery failure.
var ErrUpstreamOpen = errors.New("upstream circuit open")

// upstreamBreaker trips per upstream host after maxFailures
// consecutive failed deliveries. After openTimeout one trial request
// is let through; its outcome decides whether the upstream is back.
type upstreamBreaker struct {
	upstream string

	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	openSince   time.Time
	openTimeout time.Duration
}

func newUpstreamBreaker(upstream string, maxFailures int, openTimeout time.Duration) *upstreamBreaker {
	return &upstreamBreaker{
		upstream:    upstream,
		state:       stateClosed,
		maxFailures: maxFailures,
		openTimeout: openTimeout,
	}
}

// Allow reports whether a request to the upstream may proceed. In the
// half-open state only the first caller gets through; concurrent
// callers are rejected until the trial resolves.
func (b *upstreamBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil

	case stateOpen:
		if time.Since(b.openSince) > b.openTimeout {
			logger.Warn("upstream circuit half-open, trying one request",
				zap.String("upstream", b.upstream))
			b.state = stateHalfOpen
			return nil
		}
		return ErrUpstreamOpen

	case stateHalfOpen:
		return ErrUpstreamOpen
	}
	return nil
}

func (b *upstreamBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		logger.Info("upstream circuit closed",
			zap.String("upstream", b.upstream))
		b.state = stateClosed
		b.failures = 0

	case stateClosed:
		b.failures = 0
	}
}

func (b *upstreamBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		logger.Warn("upstream circuit re-opened, trial failed",
			zap.String("upstream", b.upstream))
		b.state = stateOpen
		b.openSince = time.Now()

	case stateClosed:
		b.failures++
		if b.failures >= b.maxFailures {
			logger.Error("upstream circuit opened",
				zap.String("upstream", b.upstream),
				zap.Int("failures", b.failures))
			b.state = stateOpen
			b.openSince = time.Now()
		}
	}
}
