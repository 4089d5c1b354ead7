package buffer

import (
	"fmt"

	"github.com/kolkov/swtrace/internal/swt/loc"
)

// Allocator provides backing stores for a Buffer.
//
// Realloc returns a store of exactly n records whose prefix holds a copy of
// old. On error, old must remain valid and unmodified.
type Allocator interface {
	Realloc(old []loc.Loc, n int) ([]loc.Loc, error)
}

// AllocatorFunc adapts a function to the Allocator interface.
type AllocatorFunc func(old []loc.Loc, n int) ([]loc.Loc, error)

// Realloc calls f(old, n).
func (f AllocatorFunc) Realloc(old []loc.Loc, n int) ([]loc.Loc, error) {
	return f(old, n)
}

// Heap is the default allocator backed by the Go heap.
var Heap Allocator = heapAllocator{}

type heapAllocator struct{}

// Realloc allocates a fresh store and copies old into it.
//
// Requests the runtime rejects up front (makeslice: len out of range) are
// reported as ErrAllocFailed. A request that passes those checks but cannot
// be satisfied by the OS is fatal to the Go runtime and cannot be caught.
func (heapAllocator) Realloc(old []loc.Loc, n int) (store []loc.Loc, err error) {
	defer func() {
		if r := recover(); r != nil {
			store = nil
			err = fmt.Errorf("%w: %v", ErrAllocFailed, r)
		}
	}()

	store = make([]loc.Loc, n)
	copy(store, old)
	return store, nil
}
