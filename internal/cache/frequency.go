package cache

import (
	"sync"

	gometrics "github.com/rcrowley/go-metrics"
)

// frequencyBufferCapacity bounds the lossy ring every Cache uses to
// record recent accesses; once full, the oldest sample is dropped to
// make room for the newest one.
const frequencyBufferCapacity = 256

// FrequencyBuffer is a lossy ring of recent access outcomes (hit or
// miss) backed by a go-metrics EWMA, giving each Cache a windowed hit
// rate the Manager can use to prioritise rebalancing without retaining
// unbounded history.
type FrequencyBuffer struct {
	mu     sync.Mutex
	ring   []bool
	cursor int
	filled int

	ewma gometrics.EWMA

	lifetimeHits  uint64
	lifetimeTotal uint64
}

// ewmaTickSeconds is the tick interval go-metrics' EWMA assumes when it
// turns its average into a per-second Rate.
const ewmaTickSeconds = 5

// NewFrequencyBuffer constructs an empty buffer with go-metrics'
// one-minute EWMA alpha. Record ticks the EWMA once per access, so the
// decay is per access: each new sample carries a weight of about 8%.
func NewFrequencyBuffer() *FrequencyBuffer {
	return &FrequencyBuffer{
		ring: make([]bool, frequencyBufferCapacity),
		ewma: gometrics.NewEWMA1(),
	}
}

// Record appends one access outcome, evicting the oldest sample once
// the ring is full.
func (f *FrequencyBuffer) Record(hit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ring[f.cursor] = hit
	f.cursor = (f.cursor + 1) % frequencyBufferCapacity
	if f.filled < frequencyBufferCapacity {
		f.filled++
	}
	f.lifetimeTotal++
	if hit {
		f.lifetimeHits++
		f.ewma.Update(1)
	} else {
		f.ewma.Update(0)
	}
	f.ewma.Tick()
}

// WindowedHitRate returns the EWMA-smoothed hit rate over recent
// accesses, in [0,1]. go-metrics reports a per-second rate for its
// assumed tick interval, so that rate is scaled back by ewmaTickSeconds
// to give the average per access.
func (f *FrequencyBuffer) WindowedHitRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ewma.Rate() * ewmaTickSeconds
}

// LifetimeHitRate returns the raw hit ratio over every access this
// buffer has ever recorded, tracked as a monotonic hit/total pair
// rather than derived from the bounded ring (which only holds the most
// recent frequencyBufferCapacity samples and would otherwise give a
// second windowed rate under the "lifetime" name).
func (f *FrequencyBuffer) LifetimeHitRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lifetimeTotal == 0 {
		return 0
	}
	return float64(f.lifetimeHits) / float64(f.lifetimeTotal)
}

// Accesses returns the number of recorded accesses still in the ring.
func (f *FrequencyBuffer) Accesses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filled
}
