// Package loc defines the location record written into software traces.
//
// A Loc identifies one basic block visited by the running program: the
// compilation unit (region) it belongs to, the definition inside that unit,
// and the block inside that definition. Locs are plain values with a fixed
// 16-byte layout and no pointers, so a []Loc can be handed across a foreign
// boundary as a pointer/length pair without any translation.
package loc

import (
	"fmt"
	"unsafe"
)

// Loc is a single trace entry.
//
// Layout (16 bytes, no padding):
//
//	offset 0:  CrateHash (uint64)
//	offset 8:  DefIdx    (uint32)
//	offset 12: BbIdx     (uint32)
//
// Equality is value equality; a Loc is never mutated once written.
type Loc struct {
	// CrateHash identifies the enclosing compilation unit.
	CrateHash uint64

	// DefIdx is the index of the definition (function) within the unit.
	DefIdx uint32

	// BbIdx is the index of the basic block within the definition.
	BbIdx uint32
}

// Size is the in-memory size of a Loc in bytes.
const Size = unsafe.Sizeof(Loc{})

// New creates a Loc.
func New(crateHash uint64, defIdx, bbIdx uint32) Loc {
	return Loc{CrateHash: crateHash, DefIdx: defIdx, BbIdx: bbIdx}
}

// RegionHash returns the compilation unit identifier.
func (l Loc) RegionHash() uint64 { return l.CrateHash }

// DefinitionIndex returns the definition index.
func (l Loc) DefinitionIndex() uint32 { return l.DefIdx }

// BlockIndex returns the basic block index.
func (l Loc) BlockIndex() uint32 { return l.BbIdx }

// String formats the location as "crate:def:bb" with the crate hash in hex.
func (l Loc) String() string {
	return fmt.Sprintf("%016x:%d:%d", l.CrateHash, l.DefIdx, l.BbIdx)
}
