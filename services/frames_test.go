package services

import (
	"sync"
	"testing"

	"github.com/krshsl/prepmate/analysis"
	"github.com/stretchr/testify/assert"
)

func TestAppendFramesKeepsNewest(t *testing.T) {
	existing := make([]analysis.Frame, maxStoredFrames)
	for i := range existing {
		existing[i] = analysis.Frame{Timestamp: float64(i)}
	}
	incoming := []analysis.Frame{{Timestamp: maxStoredFrames}, {Timestamp: maxStoredFrames + 1}}

	merged := appendFrames(existing, incoming)
	assert.Len(t, merged, maxStoredFrames)
	assert.Equal(t, 2.0, merged[0].Timestamp)
	assert.Equal(t, float64(maxStoredFrames+1), merged[len(merged)-1].Timestamp)
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()
	counters := map[string]*int{"a": new(int), "b": new(int)}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				unlock := locks.Lock(key)
				defer unlock()
				*counters[key]++
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 50, *counters["a"])
	assert.Equal(t, 50, *counters["b"])
	assert.Empty(t, locks.locks)
}
