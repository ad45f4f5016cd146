// rate.go is a small EWMA rate estimator for the ingest loop's blocks/sec
// figure. The health report wants an instantaneous-ish local rate without
// scraping Prometheus back, so one 1-minute moving average is kept here
// alongside the exported counter.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const tickInterval = 5 * time.Second

// rateMeter tracks an event rate with a 1-minute exponentially weighted
// moving average, decayed in 5-second ticks on access. Safe for
// concurrent use.
type rateMeter struct {
	alpha     float64
	uncounted atomic.Int64
	count     atomic.Int64

	mu       sync.Mutex
	rate     float64
	primed   bool
	lastTick time.Time
}

func newRateMeter() *rateMeter {
	return &rateMeter{
		alpha:    1 - math.Exp(-tickInterval.Seconds()/60),
		lastTick: time.Now(),
	}
}

// mark records n events.
func (m *rateMeter) mark(n int64) {
	m.count.Add(n)
	m.uncounted.Add(n)
	m.tick()
}

// perSecond returns the current 1-minute EWMA rate.
func (m *rateMeter) perSecond() float64 {
	m.tick()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// total returns the number of events recorded since creation.
func (m *rateMeter) total() int64 { return m.count.Load() }

// tick folds uncounted events into the average, once per elapsed
// 5-second interval.
func (m *rateMeter) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for now.Sub(m.lastTick) >= tickInterval {
		instant := float64(m.uncounted.Swap(0)) / tickInterval.Seconds()
		if m.primed {
			m.rate += m.alpha * (instant - m.rate)
		} else {
			m.rate = instant
			m.primed = true
		}
		m.lastTick = m.lastTick.Add(tickInterval)
	}
}
