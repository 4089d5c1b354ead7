package recorder

import (
	"errors"

	"github.com/kolkov/swtrace/internal/swt/buffer"
)

// State is the lifecycle state of a Recorder.
type State int32

const (
	// Idle means no session is in progress.
	Idle State = iota

	// Active means a session is in progress and records are accepted.
	Active

	// Faulted means a session is in progress but recording has stopped,
	// either because of a growth failure or an invalidation. Records
	// collected so far remain valid.
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Status tells the consumer how a session ended.
type Status int32

const (
	// StatusComplete means every record issued during the session was kept.
	StatusComplete Status = iota

	// StatusInvalidated means the session was invalidated asynchronously.
	StatusInvalidated

	// StatusCapacityOverflow means the buffer capacity could not grow further.
	StatusCapacityOverflow

	// StatusSizeOverflow means the byte size of the grown buffer overflowed.
	StatusSizeOverflow

	// StatusAllocFailed means the allocator could not provide a larger buffer.
	StatusAllocFailed
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusInvalidated:
		return "invalidated"
	case StatusCapacityOverflow:
		return "capacity_overflow"
	case StatusSizeOverflow:
		return "size_overflow"
	case StatusAllocFailed:
		return "alloc_failed"
	default:
		return "unknown"
	}
}

// statusFor maps a buffer growth error to the session status it causes.
func statusFor(err error) Status {
	switch {
	case errors.Is(err, buffer.ErrCapacityOverflow):
		return StatusCapacityOverflow
	case errors.Is(err, buffer.ErrSizeOverflow):
		return StatusSizeOverflow
	default:
		return StatusAllocFailed
	}
}
