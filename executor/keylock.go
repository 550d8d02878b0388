// Package executor selects top-scoring opportunities and runs them under a
// concurrency bound with per-key mutual exclusion.
package executor

import (
	"sync"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// KeyLock tracks in-flight execution keys. At most one execution may hold a
// given (asset, side) key at any time; claims must be released on every exit
// path.
type KeyLock struct {
	mu       sync.Mutex
	inflight map[types.ExecutionKey]struct{}
}

// NewKeyLock creates an empty claim registry.
func NewKeyLock() *KeyLock {
	return &KeyLock{inflight: make(map[types.ExecutionKey]struct{})}
}

// Claim attempts to take the key. It returns false when another execution
// already holds it; the caller defers that opportunity to the next cycle.
func (l *KeyLock) Claim(key types.ExecutionKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inflight[key]; busy {
		return false
	}
	l.inflight[key] = struct{}{}
	return true
}

// Release frees the key. Releasing an unclaimed key is a no-op.
func (l *KeyLock) Release(key types.ExecutionKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, key)
}

// InFlight returns the number of currently claimed keys.
func (l *KeyLock) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
