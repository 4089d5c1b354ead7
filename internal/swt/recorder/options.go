package recorder

import (
	"log/slog"

	"github.com/kolkov/swtrace/internal/swt/buffer"
)

// Observer receives session lifecycle events, typically to export metrics.
//
// Observer methods run on the goroutine that owns the recorder, never on
// the per-record fast path (only when a session starts, grows, faults or
// stops) and never from Invalidate.
type Observer interface {
	SessionStarted()
	BufferGrew()
	SessionFaulted(reason Status)
	SessionStopped(status Status, records int)
}

type nopObserver struct{}

func (nopObserver) SessionStarted()            {}
func (nopObserver) BufferGrew()                {}
func (nopObserver) SessionFaulted(Status)      {}
func (nopObserver) SessionStopped(Status, int) {}

type config struct {
	alloc      buffer.Allocator
	initialCap int
	step       int
	observer   Observer
	logger     *slog.Logger
}

func defaultConfig() config {
	return config{
		alloc:      buffer.Heap,
		initialCap: buffer.InitialCapacity,
		step:       buffer.GrowthStep,
		observer:   nopObserver{},
	}
}

// Option configures a Recorder.
type Option func(*config)

// WithAllocator sets the allocator used for the trace buffer.
func WithAllocator(a buffer.Allocator) Option {
	return func(c *config) {
		if a != nil {
			c.alloc = a
		}
	}
}

// WithInitialCapacity sets the number of records allocated by Start.
func WithInitialCapacity(n int) Option {
	return func(c *config) { c.initialCap = n }
}

// WithGrowthStep sets the number of records added on each growth.
func WithGrowthStep(n int) Option {
	return func(c *config) { c.step = n }
}

// WithObserver registers an Observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger. The default is slog.Default() at the time
// the recorder is created.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
