// Package buffer implements the growable, append-only trace buffer.
//
// The buffer grows linearly by a fixed step rather than geometrically, so
// the cost of any single growth is bounded. Every growth is preceded by
// checked arithmetic on the new capacity and on its size in bytes; when a
// check fails, or the allocator cannot provide the new store, the buffer is
// left exactly as it was and the caller decides what to do (the recorder
// stops accepting records).
//
// Invariant: Len() <= Cap(), and no element at or beyond Len() is ever
// observable through the Buffer API.
//
// Thread Safety: NOT thread-safe. A Buffer is owned by exactly one recorder.
package buffer

import (
	"errors"
	"fmt"
	"math/bits"

	"fortio.org/safecast"

	"github.com/kolkov/swtrace/internal/swt/loc"
)

const (
	// InitialCapacity is the number of records allocated when a session starts.
	InitialCapacity = 1024

	// GrowthStep is the number of records added to the capacity on each growth.
	GrowthStep = 1024
)

var (
	// ErrCapacityOverflow is returned when capacity + step does not fit in an int.
	ErrCapacityOverflow = errors.New("buffer: capacity overflow")

	// ErrSizeOverflow is returned when capacity * record size does not fit in an int.
	ErrSizeOverflow = errors.New("buffer: size overflow")

	// ErrAllocFailed is returned when the allocator cannot provide a new store.
	ErrAllocFailed = errors.New("buffer: allocation failed")

	// ErrInvalidCapacity is returned for negative capacities or non-positive steps.
	ErrInvalidCapacity = errors.New("buffer: invalid capacity")
)

// NextCapacity returns capacity + step, or ErrCapacityOverflow if the sum
// is not representable as an int on this platform.
func NextCapacity(capacity, step int) (int, error) {
	if capacity < 0 || step <= 0 {
		return 0, ErrInvalidCapacity
	}

	c, err := safecast.Conv[uint64](capacity)
	if err != nil {
		return 0, ErrInvalidCapacity
	}
	s, err := safecast.Conv[uint64](step)
	if err != nil {
		return 0, ErrInvalidCapacity
	}

	sum, carry := bits.Add64(c, s, 0)
	if carry != 0 {
		return 0, ErrCapacityOverflow
	}
	next, err := safecast.Conv[int](sum)
	if err != nil {
		return 0, ErrCapacityOverflow
	}
	return next, nil
}

// ByteSize returns n * elem, or ErrSizeOverflow if the product is not
// representable as an int (the largest allocation a Go slice can describe).
func ByteSize(n int, elem uintptr) (int, error) {
	un, err := safecast.Conv[uint64](n)
	if err != nil {
		return 0, ErrInvalidCapacity
	}

	hi, lo := bits.Mul64(un, uint64(elem))
	if hi != 0 {
		return 0, ErrSizeOverflow
	}
	size, err := safecast.Conv[int](lo)
	if err != nil {
		return 0, ErrSizeOverflow
	}
	return size, nil
}

// Buffer is a dense, append-only sequence of location records.
type Buffer struct {
	// store is the backing array; len(store) is the capacity.
	store []loc.Loc

	// n is the logical length. Only store[:n] holds records.
	n int

	// step is the linear growth increment (in records).
	step int

	// alloc provides new backing stores.
	alloc Allocator

	// growths counts successful growths, for statistics.
	growths int
}

// New allocates a buffer with the given initial capacity and growth step.
//
// A nil allocator selects Heap. The returned error wraps ErrAllocFailed if
// the initial store cannot be allocated, or is ErrInvalidCapacity for
// nonsensical parameters.
func New(alloc Allocator, initialCap, step int) (*Buffer, error) {
	if initialCap <= 0 || step <= 0 {
		return nil, ErrInvalidCapacity
	}
	if alloc == nil {
		alloc = Heap
	}
	if _, err := ByteSize(initialCap, loc.Size); err != nil {
		return nil, err
	}

	store, err := alloc.Realloc(nil, initialCap)
	if err != nil {
		return nil, fmt.Errorf("initial store of %d records: %w", initialCap, err)
	}

	return &Buffer{
		store: store,
		step:  step,
		alloc: alloc,
	}, nil
}

// Len returns the number of records in the buffer.
func (b *Buffer) Len() int { return b.n }

// Cap returns the number of allocated record slots.
func (b *Buffer) Cap() int { return len(b.store) }

// Growths returns how many times the buffer has grown.
func (b *Buffer) Growths() int { return b.growths }

// At returns the record at index i. It panics if i is outside [0, Len()).
func (b *Buffer) At(i int) loc.Loc {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("buffer: index %d out of range [0:%d]", i, b.n))
	}
	return b.store[i]
}

// Append adds a record at the end of the buffer, growing it if full.
//
// Growth algorithm:
//  1. capacity + step must fit in an int (ErrCapacityOverflow)
//  2. new capacity * record size must fit in an int (ErrSizeOverflow)
//  3. the allocator must provide the new store (ErrAllocFailed)
//  4. commit the new store, then write the record and bump the length
//
// On any failure the record is dropped and the buffer is unchanged: the
// existing store and length stay valid.
//
// Performance: amortised O(1); a growth copies Len() records.
func (b *Buffer) Append(l loc.Loc) error {
	if b.n == len(b.store) {
		if err := b.grow(); err != nil {
			return err
		}
	}

	b.store[b.n] = l
	b.n++
	return nil
}

// grow performs steps 1-3 of the growth algorithm and commits on success.
func (b *Buffer) grow() error {
	newCap, err := NextCapacity(len(b.store), b.step)
	if err != nil {
		return err
	}
	if _, err := ByteSize(newCap, loc.Size); err != nil {
		return err
	}

	store, err := b.alloc.Realloc(b.store[:b.n], newCap)
	if err != nil {
		return err
	}
	if len(store) != newCap {
		return fmt.Errorf("%w: allocator returned %d slots, want %d", ErrAllocFailed, len(store), newCap)
	}

	b.store = store
	b.growths++
	return nil
}

// Release hands out the recorded entries and empties the buffer.
//
// The returned slice has length and capacity Len(); the buffer keeps no
// reference to it. After Release the buffer is empty with zero capacity and
// must not be appended to again.
func (b *Buffer) Release() []loc.Loc {
	out := b.store[:b.n:b.n]
	b.store = nil
	b.n = 0
	return out
}
