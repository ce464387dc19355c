package indexer

import "sync/atomic"

// IndexLock serializes indexing runs. Acquisition never blocks: a
// second run arriving while one is underway is rejected, and the
// caller reports the conflict instead of queueing work.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}
