package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtBase(t *testing.T) {
	clock := NewDeterministicClock(1000)
	assert.Equal(t, 1000.0, clock.Current())
}

func TestDeterministicClock_NowAdvances(t *testing.T) {
	clock := NewDeterministicClock(1000)

	assert.Equal(t, 1001.0, clock.Now())
	assert.Equal(t, 1002.0, clock.Now())
	assert.Equal(t, 1002.0, clock.Current())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(0)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, 0.0, clock.Current())
	assert.Equal(t, 1.0, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(0)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[float64]bool)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				v := clock.Now()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, float64(numGoroutines*callsPerGoroutine), clock.Current())
}

func TestSequenceIDs(t *testing.T) {
	gen := NewSequenceIDs("ev")
	assert.Equal(t, "ev-1", gen.Generate())
	assert.Equal(t, "ev-2", gen.Generate())

	assert.Equal(t, "id-1", NewSequenceIDs("").Generate())
}
