package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifetimeHitRateOutlivesRingCapacity(t *testing.T) {
	f := NewFrequencyBuffer()

	for i := 0; i < 300; i++ {
		f.Record(true)
	}
	for i := 0; i < 100; i++ {
		f.Record(false)
	}

	require.InDelta(t, 0.75, f.LifetimeHitRate(), 1e-9)
	require.Equal(t, frequencyBufferCapacity, f.Accesses())
}

func TestLifetimeHitRateZeroWithNoAccesses(t *testing.T) {
	f := NewFrequencyBuffer()
	require.Equal(t, 0.0, f.LifetimeHitRate())
}
