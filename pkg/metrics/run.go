package metrics

import (
	"sync"
	"time"

	"github.com/uhyunpark/orderflood/pkg/util"
)

// RunMetrics brackets the scheduler's active lifetime. It measures time to
// the last initiated send, not to the last response.
type RunMetrics struct {
	clock util.Clock

	mu      sync.Mutex
	start   time.Time
	stop    time.Time
	started bool
	stopped bool
}

func NewRunMetrics(clock util.Clock) *RunMetrics {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &RunMetrics{clock: clock}
}

func (m *RunMetrics) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = m.clock.Now()
	m.started = true
	m.stopped = false
}

// Stop freezes the elapsed time. Only the first call after Start counts.
func (m *RunMetrics) Stop() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started && !m.stopped {
		m.stop = m.clock.Now()
		m.stopped = true
	}
	return m.elapsedLocked()
}

// Elapsed is live while running and frozen after Stop.
func (m *RunMetrics) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked()
}

func (m *RunMetrics) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *RunMetrics) elapsedLocked() time.Duration {
	switch {
	case !m.started:
		return 0
	case m.stopped:
		return m.stop.Sub(m.start)
	default:
		return m.clock.Now().Sub(m.start)
	}
}
