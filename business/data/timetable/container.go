package timetable

import (
	"sync"
	"sync/atomic"
)

// SnapshotContainer is the concurrency primitive that publishes
// TimetableSnapshots: readers load the current snapshot with a lock-free
// atomic read, while a single writer at a time stages changes in a builder
// and commits it with an atomic pointer swap. Holding a pointer returned by
// Current keeps that snapshot, and everything it overlays, alive for as
// long as the reader needs it — Go's garbage collector is the "retained
// until the last reader completes" mechanism the design calls for; no
// reference counting is needed on top of it.
type SnapshotContainer struct {
	current     atomic.Pointer[TimetableSnapshot]
	writerLock  sync.Mutex
	pendingLock sync.Mutex
	pending     *TimetableSnapshot
}

// NewSnapshotContainer returns a container holding an empty committed
// snapshot.
func NewSnapshotContainer() *SnapshotContainer {
	c := &SnapshotContainer{}
	c.current.Store(NewTimetableSnapshot())
	return c
}

// Current returns the currently published snapshot. It never blocks.
func (c *SnapshotContainer) Current() *TimetableSnapshot {
	return c.current.Load()
}

// NewBuilder acquires the single updater lock and returns a dirty snapshot
// seeded from the currently published one. The caller must eventually call
// either Commit or Discard to release the lock; concurrent callers of
// NewBuilder block until that happens, matching the spec's requirement
// that multiple updaters coordinate externally rather than interleave
// within one commit.
func (c *SnapshotContainer) NewBuilder() *TimetableSnapshot {
	c.writerLock.Lock()
	b := c.Current().NewBuilder()
	c.pendingLock.Lock()
	c.pending = b
	c.pendingLock.Unlock()
	return b
}

// Commit freezes builder and atomically publishes it as the current
// snapshot, then releases the updater lock. It returns ErrSnapshotFrozen if
// builder is not the pending snapshot returned by the most recent
// NewBuilder call, which indicates a programming error in the caller; in
// that case nothing is published and the updater lock is left as it is.
func (c *SnapshotContainer) Commit(builder *TimetableSnapshot) error {
	c.pendingLock.Lock()
	isPending := builder == c.pending
	if isPending {
		c.pending = nil
	}
	c.pendingLock.Unlock()
	if !isPending {
		return ErrSnapshotFrozen
	}
	defer c.writerLock.Unlock()
	builder.Commit()
	c.current.Store(builder)
	return nil
}

// Discard releases the updater lock without publishing builder, used when a
// structural error makes the whole batch unsafe to commit. The previously
// published snapshot remains current.
func (c *SnapshotContainer) Discard(builder *TimetableSnapshot) {
	defer c.writerLock.Unlock()
	c.pendingLock.Lock()
	if builder == c.pending {
		c.pending = nil
	}
	c.pendingLock.Unlock()
}

// PruneServiceDatesBefore stages and commits a snapshot with every overlay
// strictly before cutoff removed, the scheduled counterpart to the
// per-batch commits UpdateApplier performs. It goes through NewBuilder and
// Commit like any other writer so it serializes correctly with concurrent
// update batches.
func (c *SnapshotContainer) PruneServiceDatesBefore(cutoff ServiceDate) error {
	builder := c.NewBuilder()
	for k := range builder.realtimeTimetables {
		if before(k.date, cutoff) {
			delete(builder.realtimeTimetables, k)
		}
	}
	return c.Commit(builder)
}
