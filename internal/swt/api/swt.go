// Package api provides the runtime entry points for software tracing.
//
// This package implements the functions called by instrumented code: one
// RecordLoc call at the entry of every basic block, plus StartTracing and
// StopTracing around the region of interest. RecordLoc runs millions of
// times, so it is a CRITICAL HOT PATH.
//
// Each goroutine has its own recorder, kept in a registry keyed by
// goroutine ID. Sessions on different goroutines never share state.
//
// Performance Targets:
//   - RecordLoc, no session anywhere: one atomic load
//   - RecordLoc, some session live: goroutine ID lookup (~1µs) + append
//   - InvalidateTrace/InvalidateAll: atomic stores only
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kolkov/swtrace/internal/swt/goroutine"
	"github.com/kolkov/swtrace/internal/swt/metrics"
	"github.com/kolkov/swtrace/internal/swt/recorder"
	"github.com/kolkov/swtrace/internal/swt/sigabort"
)

// Panic messages for caller contract violations.
const (
	msgAlreadyStarted = "tracing was already started for this thread!"
	msgNotStarted     = "tracing not started on this thread"
)

// Global runtime state.
var (
	// live is the number of sessions in progress across all goroutines.
	// RecordLoc returns immediately while it is zero.
	live atomic.Int64

	// registry maps goroutine IDs to recorders. Replaced by Init.
	registry atomic.Pointer[goroutine.Registry]

	// logger receives fault and fatal-start reports.
	logger atomic.Pointer[slog.Logger]

	// met is registered once with the default Prometheus registerer.
	met     *metrics.Metrics
	metOnce sync.Once

	// Summary counters printed by Fini.
	started     atomic.Int64
	stopped     atomic.Int64
	partial     atomic.Int64
	collected   atomic.Int64
	invalidated atomic.Int64
	abandoned   atomic.Int64

	// fatal ends the process when a session cannot start at all.
	// Replaced in tests.
	fatal = func(error) { os.Exit(1) }
)

// init prepares the runtime. It is ready to use immediately.
func init() {
	Init()
}

// Init resets the runtime to a clean state.
//
// Every recorder is forgotten, including those with a session in progress.
// Instrumented programs call Init from an injected init function; tests
// call it to isolate themselves.
func Init() {
	metOnce.Do(func() {
		met = metrics.New(nil)
	})

	live.Store(0)
	started.Store(0)
	stopped.Store(0)
	partial.Store(0)
	collected.Store(0)
	invalidated.Store(0)
	abandoned.Store(0)

	registry.Store(goroutine.NewRegistry(newRecorder, onAbandon))
}

// SetLogger replaces the logger used by the runtime. A nil logger restores
// slog.Default().
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func currentLogger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func newRecorder() *recorder.Recorder {
	return recorder.New(recorder.WithObserver(met), recorder.WithLogger(currentLogger()))
}

// onAbandon accounts for a goroutine that exited mid-session.
func onAbandon(gid int64, rec *recorder.Recorder) {
	live.Add(-1)
	abandoned.Add(1)
	met.Abandoned()
	currentLogger().Debug("software trace abandoned", "goroutine", gid, "state", rec.State())
}

// StartTracing starts a session on the calling goroutine.
//
// It panics if the goroutine is already tracing. If the initial buffer
// cannot be allocated the failure is logged and the process terminates:
// there is no partial trace to preserve.
func StartTracing() {
	rec := registry.Load().Acquire()

	err := rec.Start()
	switch {
	case err == nil:
		live.Add(1)
		started.Add(1)
	case errors.Is(err, recorder.ErrAlreadyTracing):
		panic(msgAlreadyStarted)
	default:
		currentLogger().Error("cannot start software trace", "error", err)
		fatal(err)
	}
}

// RecordLoc appends a location to the calling goroutine's trace.
//
// It is a no-op when the goroutine is not tracing, including after the
// session was invalidated or faulted. It never creates a recorder.
//
// Flow:
//  1. Return if no session is live anywhere (atomic load)
//  2. Look up the calling goroutine's recorder, return if none
//  3. Append (the recorder checks its own active flag)
func RecordLoc(crateHash uint64, defIdx, bbIdx uint32) {
	if live.Load() == 0 {
		return
	}

	rec, ok := registry.Load().Current()
	if !ok {
		return
	}
	rec.Record(crateHash, defIdx, bbIdx)
}

// StopTracing ends the calling goroutine's session and returns its trace.
//
// The caller owns the returned trace. If the session was invalidated or
// faulted, the trace holds what was collected before and its Status says
// why it is partial. StopTracing panics if the goroutine is not tracing.
func StopTracing() *recorder.Trace {
	rec, ok := registry.Load().Current()
	if !ok {
		panic(msgNotStarted)
	}

	t, err := rec.Stop()
	if err != nil {
		panic(msgNotStarted)
	}

	live.Add(-1)
	stopped.Add(1)
	collected.Add(int64(t.Len()))
	if !t.Complete() {
		partial.Add(1)
	}
	return t
}

// InvalidateTrace stops the calling goroutine's session from accepting
// further records. It is a no-op if the goroutine has no recorder.
//
// Thread Safety: performs atomic stores only; safe at any point, including
// while the same goroutine's recorder is growing its buffer.
func InvalidateTrace() {
	if rec, ok := registry.Load().Current(); ok {
		rec.Invalidate()
	}
}

// InvalidateAll invalidates every active session and returns how many
// were active. This is the path taken on an asynchronous abort request,
// which in Go arrives on a goroutine other than the traced ones.
func InvalidateAll() int {
	n := 0
	registry.Load().Range(func(_ int64, rec *recorder.Recorder) bool {
		switch rec.State() {
		case recorder.Active:
			rec.Invalidate()
			n++
		case recorder.Faulted:
			rec.Invalidate()
		}
		return true
	})
	invalidated.Add(int64(n))
	met.Invalidated(n)
	return n
}

// InvalidateOnSignal calls InvalidateAll whenever one of the named signals
// is delivered. With no names, os.Interrupt is used. The returned stop
// function restores default signal handling.
func InvalidateOnSignal(names ...string) (stop func(), err error) {
	sigs, err := sigabort.ParseSignals(names)
	if err != nil {
		return nil, err
	}
	return sigabort.Install(context.Background(), func() { InvalidateAll() }, sigs...), nil
}

// IsTracing reports whether the calling goroutine has an active session.
func IsTracing() bool {
	if live.Load() == 0 {
		return false
	}
	rec, ok := registry.Load().Current()
	return ok && rec.State() == recorder.Active
}

// LiveSessions returns the number of sessions in progress.
func LiveSessions() int64 {
	return live.Load()
}

// Reap forgets the recorders of exited goroutines and returns how many
// were removed. It also runs periodically in the background.
func Reap() int {
	return registry.Load().Reap()
}

// Stats is a snapshot of the runtime counters.
type Stats struct {
	Started     int64
	Stopped     int64
	Partial     int64
	Records     int64
	Invalidated int64
	Abandoned   int64
	Live        int64

	// Recorders is the number of goroutines holding a recorder, idle ones
	// included, until the next reap.
	Recorders int
}

// GetStats returns the counters accumulated since the last Init.
func GetStats() Stats {
	return Stats{
		Started:     started.Load(),
		Stopped:     stopped.Load(),
		Partial:     partial.Load(),
		Records:     collected.Load(),
		Invalidated: invalidated.Load(),
		Abandoned:   abandoned.Load(),
		Live:        live.Load(),
		Recorders:   registry.Load().Len(),
	}
}

// Fini prints a summary of the tracing activity to stderr.
//
// Instrumented programs call it when main returns. Sessions still in
// progress are reported but left untouched.
func Fini() {
	s := GetStats()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "==================\n")
	fmt.Fprintf(os.Stderr, "Software Trace Report\n")
	fmt.Fprintf(os.Stderr, "==================\n")
	fmt.Fprintf(os.Stderr, "Sessions started:   %d\n", s.Started)
	fmt.Fprintf(os.Stderr, "Sessions stopped:   %d (%d partial)\n", s.Stopped, s.Partial)
	fmt.Fprintf(os.Stderr, "Records collected:  %d\n", s.Records)
	if s.Invalidated > 0 {
		fmt.Fprintf(os.Stderr, "Invalidated:        %d\n", s.Invalidated)
	}
	if s.Abandoned > 0 {
		fmt.Fprintf(os.Stderr, "Abandoned:          %d\n", s.Abandoned)
	}
	if s.Live > 0 {
		fmt.Fprintf(os.Stderr, "WARNING: %d session(s) never stopped\n", s.Live)
	}
	fmt.Fprintf(os.Stderr, "==================\n\n")
}
