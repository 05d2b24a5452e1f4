package services

import (
	"sync"

	"github.com/krshsl/prepmate/analysis"
)

// maxStoredFrames bounds the frames kept per interview (about 90 minutes at 4 fps)
const maxStoredFrames = 20000

// FramesRequest carries webcam analysis frames sampled by the client
type FramesRequest struct {
	Frames []analysis.Frame `json:"frames" validate:"required,min=1,max=2000"`
}

// appendFrames merges incoming frames into existing ones, dropping the oldest
// once the limit is reached.
func appendFrames(existing, incoming []analysis.Frame) []analysis.Frame {
	merged := analysis.Merge(existing, incoming)
	if len(merged) > maxStoredFrames {
		merged = merged[len(merged)-maxStoredFrames:]
	}
	return merged
}

// keyedMutex serialises work per key, e.g. per interview ID
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns its unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
