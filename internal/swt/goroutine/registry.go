// Package goroutine keeps one recorder per goroutine.
//
// Go has no thread-local storage. The goroutine is the unit of execution
// that a software trace follows, so recorders are kept in a registry keyed
// by goroutine ID. Entries are created on first Acquire and removed by Reap
// once their goroutine has exited.
package goroutine

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/swtrace/internal/swt/recorder"
)

// ReapInterval is the number of acquisitions between background reaps.
const ReapInterval = 1000

type entry struct {
	rec *recorder.Recorder

	// born is the reap generation current when the entry was created.
	born uint64
}

// Registry maps goroutine IDs to their recorders.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	// entries maps goroutine ID (int64) to *entry.
	entries sync.Map

	// acquisitions counts created entries to trigger periodic reaps.
	acquisitions atomic.Uint64

	// generation is bumped at the start of every reap.
	generation atomic.Uint64

	newRecorder func() *recorder.Recorder
	onAbandon   func(gid int64, rec *recorder.Recorder)
}

// NewRegistry creates a registry.
//
// newRecorder builds the recorder for a goroutine that has none yet.
// onAbandon, if non-nil, is called by Reap for every recorder whose
// goroutine exited with a session still in progress.
func NewRegistry(newRecorder func() *recorder.Recorder, onAbandon func(gid int64, rec *recorder.Recorder)) *Registry {
	if newRecorder == nil {
		newRecorder = func() *recorder.Recorder { return recorder.New() }
	}
	return &Registry{newRecorder: newRecorder, onAbandon: onAbandon}
}

// Current returns the calling goroutine's recorder without creating one.
func (r *Registry) Current() (*recorder.Recorder, bool) {
	return r.Lookup(ID())
}

// Lookup returns the recorder registered for gid.
func (r *Registry) Lookup(gid int64) (*recorder.Recorder, bool) {
	if v, ok := r.entries.Load(gid); ok {
		return v.(*entry).rec, true
	}
	return nil, false
}

// Acquire returns the calling goroutine's recorder, creating it if needed.
//
// Performance:
//   - Cached: one goroutine ID lookup plus a sync.Map load
//   - First call per goroutine: also allocates the recorder
func (r *Registry) Acquire() *recorder.Recorder {
	gid := ID()

	if v, ok := r.entries.Load(gid); ok {
		return v.(*entry).rec
	}

	// Only the owning goroutine stores under its own ID.
	e := &entry{rec: r.newRecorder(), born: r.generation.Load()}
	r.entries.Store(gid, e)

	if r.acquisitions.Add(1)%ReapInterval == 0 {
		go r.Reap()
	}

	return e.rec
}

// Range calls fn for every registered recorder until fn returns false.
func (r *Registry) Range(fn func(gid int64, rec *recorder.Recorder) bool) {
	r.entries.Range(func(key, value any) bool {
		return fn(key.(int64), value.(*entry).rec)
	})
}

// Len returns the number of registered recorders.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reap removes the recorders of goroutines that no longer exist and
// returns how many were removed.
//
// Algorithm:
//  1. Bump the generation so entries created from now on are skipped
//  2. Snapshot all live goroutine IDs via runtime.Stack
//  3. Remove older entries whose goroutine is not in the snapshot,
//     reporting those still in a session to onAbandon
//
// Thread Safety: safe for concurrent calls; concurrent reaps just scan the
// same entries.
func (r *Registry) Reap() int {
	gen := r.generation.Add(1)

	live := liveIDs()
	liveSet := make(map[int64]struct{}, len(live))
	for _, gid := range live {
		liveSet[gid] = struct{}{}
	}

	removed := 0
	r.entries.Range(func(key, value any) bool {
		gid := key.(int64)
		e := value.(*entry)

		if e.born >= gen {
			return true
		}
		if _, ok := liveSet[gid]; ok {
			return true
		}

		if r.entries.CompareAndDelete(gid, e) {
			removed++
			if r.onAbandon != nil && e.rec.State() != recorder.Idle {
				r.onAbandon(gid, e.rec)
			}
		}
		return true
	})

	return removed
}
