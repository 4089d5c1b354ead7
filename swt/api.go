// Package swt provides the public software-trace runtime API.
//
// See doc.go for detailed documentation and examples.
package swt

import (
	"log/slog"

	internal "github.com/kolkov/swtrace/internal/swt/api"
	"github.com/kolkov/swtrace/internal/swt/loc"
	"github.com/kolkov/swtrace/internal/swt/recorder"
)

// Loc is one trace entry: package hash, function index, block index.
type Loc = loc.Loc

// Trace is the result of one tracing session. It is owned by the caller of
// StopTracing.
type Trace = recorder.Trace

// Status tells how a session ended.
type Status = recorder.Status

// Session end statuses.
const (
	StatusComplete         = recorder.StatusComplete
	StatusInvalidated      = recorder.StatusInvalidated
	StatusCapacityOverflow = recorder.StatusCapacityOverflow
	StatusSizeOverflow     = recorder.StatusSizeOverflow
	StatusAllocFailed      = recorder.StatusAllocFailed
)

// Stats is a snapshot of the runtime counters.
type Stats = internal.Stats

// Init initializes the runtime, forgetting every recorder.
//
// The swtrace tool injects a call to Init into the instrumented program's
// init functions. For manual instrumentation, call Init at program startup:
//
//	func main() {
//		swt.Init()
//		defer swt.Fini()
//		// ... rest of program
//	}
func Init() {
	internal.Init()
}

// Fini prints a summary of the tracing activity to stderr.
func Fini() {
	internal.Fini()
}

// StartTracing starts a tracing session on the calling goroutine.
//
// It panics if the goroutine is already tracing. If the initial trace
// buffer cannot be allocated, the error is logged and the process exits.
func StartTracing() {
	internal.StartTracing()
}

// RecordLoc appends a location to the calling goroutine's trace.
//
// This function is inserted by the swtrace tool at the entry of every
// block. It does nothing unless the calling goroutine is tracing.
//
// Parameters:
//   - crateHash: hash of the package import path
//   - defIdx: index of the enclosing function within the package
//   - bbIdx: index of the block within the function
func RecordLoc(crateHash uint64, defIdx, bbIdx uint32) {
	internal.RecordLoc(crateHash, defIdx, bbIdx)
}

// StopTracing ends the calling goroutine's session and returns its trace.
//
// It panics if the goroutine is not tracing. The trace may be partial;
// check Trace.Status or Trace.Complete.
func StopTracing() *Trace {
	return internal.StopTracing()
}

// InvalidateTrace makes the calling goroutine's session drop all further
// records. StopTracing must still be called.
func InvalidateTrace() {
	internal.InvalidateTrace()
}

// InvalidateAll invalidates every active session and returns how many
// were active. It may be called from any goroutine.
func InvalidateAll() int {
	return internal.InvalidateAll()
}

// InvalidateOnSignal invalidates every active session whenever one of the
// named signals (for example "SIGUSR1") is delivered. With no names,
// os.Interrupt is used.
//
// Example:
//
//	stop, err := swt.InvalidateOnSignal("SIGUSR1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer stop()
func InvalidateOnSignal(names ...string) (stop func(), err error) {
	return internal.InvalidateOnSignal(names...)
}

// IsTracing reports whether the calling goroutine has an active session.
func IsTracing() bool {
	return internal.IsTracing()
}

// GetStats returns the counters accumulated since the last Init.
func GetStats() Stats {
	return internal.GetStats()
}

// SetLogger sets the logger used to report faults. A nil logger restores
// slog.Default().
func SetLogger(l *slog.Logger) {
	internal.SetLogger(l)
}
