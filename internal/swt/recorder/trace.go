package recorder

import (
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/kolkov/swtrace/internal/swt/loc"
)

// Trace is the result of one recording session.
//
// A Trace is returned by Recorder.Stop and is owned by the caller from
// then on: the recorder keeps no reference to its storage. A Trace whose
// Status is not StatusComplete holds the records collected up to the fault
// and must be treated as partial.
type Trace struct {
	locs     []loc.Loc
	status   Status
	session  uuid.UUID
	duration time.Duration
}

// Len returns the number of records in the trace.
func (t *Trace) Len() int { return len(t.locs) }

// Loc returns the i-th record. It panics if i is out of range.
func (t *Trace) Loc(i int) loc.Loc {
	if i < 0 || i >= len(t.locs) {
		panic("software trace index out of bounds")
	}
	return t.locs[i]
}

// Locs returns the records in call order. The slice belongs to the caller.
func (t *Trace) Locs() []loc.Loc { return t.locs }

// Status reports how the session ended.
func (t *Trace) Status() Status { return t.status }

// Complete reports whether no record was dropped during the session.
func (t *Trace) Complete() bool { return t.status == StatusComplete }

// Session returns the identifier assigned when the session started.
func (t *Trace) Session() uuid.UUID { return t.session }

// Duration returns the time between Start and Stop.
func (t *Trace) Duration() time.Duration { return t.duration }

// Raw returns a pointer to the first record and the record count, for
// handing the trace to code that expects a plain pointer/length pair.
//
// The pointer is only valid while the Trace (or the slice from Locs) is
// reachable; callers passing it outside Go must keep the Trace alive with
// runtime.KeepAlive. An empty trace yields (nil, 0).
func (t *Trace) Raw() (unsafe.Pointer, int) {
	if len(t.locs) == 0 {
		return nil, 0
	}
	return unsafe.Pointer(unsafe.SliceData(t.locs)), len(t.locs)
}
