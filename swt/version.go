package swt

import (
	"github.com/kolkov/swtrace/internal/swt/buffer"
	"github.com/kolkov/swtrace/internal/swt/loc"
)

// Version information for the software-trace runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the software-trace runtime.
type Info struct {
	// Version is the runtime version string.
	Version string

	// InitialCapacity is the number of records allocated per session.
	InitialCapacity int

	// GrowthStep is the number of records added on each buffer growth.
	GrowthStep int

	// RecordSize is the size of one Loc in bytes.
	RecordSize int
}

// GetInfo returns information about the runtime.
//
// Example:
//
//	info := swt.GetInfo()
//	fmt.Printf("swt %s (%d-byte records)\n", info.Version, info.RecordSize)
func GetInfo() Info {
	return Info{
		Version:         Version,
		InitialCapacity: buffer.InitialCapacity,
		GrowthStep:      buffer.GrowthStep,
		RecordSize:      int(loc.Size),
	}
}
