// Package swt provides the software-trace runtime API.
//
// A software trace is the ordered list of basic blocks a goroutine visits
// between StartTracing and StopTracing. Each entry is a [Loc]: the hash of
// the package the block belongs to, the index of the enclosing function in
// that package, and the index of the block inside the function. The
// resulting [Trace] is handed to a consumer, typically a trace compiler,
// which becomes its sole owner.
//
// # Quick Start
//
// The RecordLoc calls are inserted by the swtrace tool:
//
//	$ swtrace build myprogram.go
//	$ ./myprogram
//
// The program itself decides which region to trace:
//
//	func hot() {
//		swt.StartTracing()
//		work()
//		trace := swt.StopTracing()
//		fmt.Println(trace.Len())
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Initialization and reporting: [Init], [Fini]
//   - Session control: [StartTracing], [StopTracing], [IsTracing]
//   - Location recording: [RecordLoc]
//   - Asynchronous abort: [InvalidateTrace], [InvalidateAll], [InvalidateOnSignal]
//   - Version information: [GetInfo], [Version]
//
// # How It Works
//
// The swtrace tool inserts one call at the entry of every block:
//
//	// Original code:
//	if x > 0 {
//		y++
//	}
//
//	// Instrumented code:
//	if x > 0 {
//		swt.RecordLoc(0x9e3779b97f4a7c15, 4, 2)
//		y++
//	}
//
// Every goroutine has its own recorder. RecordLoc appends to it only while
// that goroutine is tracing, and costs a single atomic load when nobody is.
// The trace buffer grows linearly; if it cannot grow (arithmetic overflow
// or allocation failure) recording stops, everything collected so far is
// kept, and the trace's [Status] says why it is partial.
//
// # Invalidation
//
// A trace can be abandoned at any time from any goroutine: [InvalidateAll]
// clears the active flag of every live session with one atomic store each.
// [InvalidateOnSignal] wires that to process signals. An invalidated
// session still has to be stopped; its trace carries [StatusInvalidated].
//
// # Misuse
//
// Starting a session on a goroutine that is already tracing panics with
// "tracing was already started for this thread!". Stopping a goroutine that
// is not tracing panics with "tracing not started on this thread".
// Reading past the end of a trace panics with "software trace index out of
// bounds".
package swt
