// Package recorder implements the software-trace recorder state machine.
//
// A Recorder holds the state of one unit of execution (one goroutine): a
// trace buffer, the active flag, and the bookkeeping needed to hand the
// buffer out when the session ends.
//
//	         Start                 Stop
//	Idle ──────────────▶ Active ──────────▶ Idle
//	                       │                 ▲
//	   growth failure or   │                 │ Stop
//	   Invalidate          ▼                 │
//	                    Faulted ─────────────┘
//
// Thread Safety: Start, Record and Stop must be called by the owning
// goroutine only. Invalidate and State may be called from any goroutine.
// Invalidate performs a single atomic store and nothing else, so it can run
// concurrently with Record at any point of the growth algorithm.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kolkov/swtrace/internal/swt/buffer"
	"github.com/kolkov/swtrace/internal/swt/loc"
)

var (
	// ErrAlreadyTracing is returned by Start when a session is in progress.
	ErrAlreadyTracing = errors.New("recorder: tracing already started")

	// ErrNotTracing is returned by Stop when no session is in progress.
	ErrNotTracing = errors.New("recorder: tracing not started")

	// ErrAlloc is returned by Start when the initial buffer cannot be allocated.
	ErrAlloc = errors.New("recorder: cannot allocate trace buffer")
)

// Recorder is the per-goroutine recorder state.
//
// The zero value is not usable; create recorders with New.
type Recorder struct {
	// active gates Record. It is the only field written by Invalidate.
	active atomic.Bool

	// inSession is true between Start and Stop. Written by the owner only;
	// atomic so that State can be read from other goroutines.
	inSession atomic.Bool

	// Owner-only fields.
	buf     *buffer.Buffer
	fault   Status
	session uuid.UUID
	started time.Time

	cfg    config
	logger *slog.Logger
}

// New creates an idle Recorder.
func New(opts ...Option) *Recorder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg, logger: logger}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	if !r.inSession.Load() {
		return Idle
	}
	if r.active.Load() {
		return Active
	}
	return Faulted
}

// Start begins a session.
//
// Start returns ErrAlreadyTracing, leaving the current session untouched,
// if a session is already in progress (Active or Faulted). If the initial
// buffer cannot be allocated the returned error wraps ErrAlloc and the
// recorder stays Idle.
func (r *Recorder) Start() error {
	if r.inSession.Load() {
		return ErrAlreadyTracing
	}

	buf, err := buffer.New(r.cfg.alloc, r.cfg.initialCap, r.cfg.step)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAlloc, err)
	}

	r.buf = buf
	r.fault = StatusComplete
	r.session = uuid.New()
	r.started = time.Now()

	// active before inSession: no other goroutine may see a fresh session
	// as Faulted.
	r.active.Store(true)
	r.inSession.Store(true)

	r.cfg.observer.SessionStarted()
	return nil
}

// Record appends one location to the current session.
//
// Record is a no-op unless the recorder is Active. When the buffer cannot
// grow, the record is dropped, the recorder becomes Faulted, and every
// record collected so far is kept.
//
// Performance: one atomic load and a slice store on the common path.
func (r *Recorder) Record(crateHash uint64, defIdx, bbIdx uint32) {
	if !r.active.Load() {
		return
	}

	grows := r.buf.Len() == r.buf.Cap()
	if err := r.buf.Append(loc.New(crateHash, defIdx, bbIdx)); err != nil {
		r.faulted(statusFor(err), err)
		return
	}
	if grows {
		r.cfg.observer.BufferGrew()
	}
}

func (r *Recorder) faulted(reason Status, err error) {
	r.active.Store(false)
	r.fault = reason
	r.cfg.observer.SessionFaulted(reason)
	r.logger.Debug("software trace faulted",
		"session", r.session,
		"reason", reason,
		"records", r.buf.Len(),
		"error", err)
}

// Invalidate stops the current session from accepting further records.
//
// Invalidate may be called any number of times, from any goroutine, at any
// time, including while the owner is inside Record. It performs one atomic
// store: it never allocates, frees, locks or logs. On an idle recorder it
// has no effect beyond that store.
func (r *Recorder) Invalidate() {
	r.active.Store(false)
}

// Stop ends the session and returns its trace.
//
// Ownership of the recorded data passes to the caller. Afterwards the
// recorder is Idle and indistinguishable from a freshly created one.
// Stop returns ErrNotTracing if no session is in progress.
func (r *Recorder) Stop() (*Trace, error) {
	if !r.inSession.Load() {
		return nil, ErrNotTracing
	}

	// A cleared flag without a recorded fault can only come from Invalidate.
	status := r.fault
	if !r.active.Load() && status == StatusComplete {
		status = StatusInvalidated
	}

	t := &Trace{
		locs:     r.buf.Release(),
		status:   status,
		session:  r.session,
		duration: time.Since(r.started),
	}

	r.inSession.Store(false)
	r.active.Store(false)
	r.buf = nil
	r.fault = StatusComplete
	r.session = uuid.Nil
	r.started = time.Time{}

	r.cfg.observer.SessionStopped(status, t.Len())
	return t, nil
}
