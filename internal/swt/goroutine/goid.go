// Copyright 2025 The swtrace Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine ID extraction.
//
// Go does not expose goroutine identity, so the ID is read from the header
// line of runtime.Stack output. This is the only portable way to obtain it
// without linking against runtime internals.

package goroutine

import "runtime"

// ID returns the current goroutine ID.
//
// Stack trace format: "goroutine 123 [running]:\n..."
//
// Performance: ~1µs per call (dominated by runtime.Stack). Callers on a
// hot path should gate on a cheaper condition first.
//
// Returns:
//   - int64: Goroutine ID (always positive), or 0 if parsing fails
func ID() int64 {
	// Only the first line is needed; 64 bytes always covers it.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine ID from stack trace bytes.
//
// Expected format: "goroutine 123 [running]:..."
// Returns the numeric ID (123 in this example) or 0 if parsing fails.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "

	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var gid int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}

// liveIDs returns the IDs of all goroutines that currently exist.
//
// The dump buffer starts at 64KiB and doubles until runtime.Stack no longer
// fills it, so no goroutine is missed because of truncation.
func liveIDs() []int64 {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return parseAllGIDs(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

// parseAllGIDs parses runtime.Stack(all=true) output.
//
// Input format (example):
//
//	goroutine 1 [running]:
//	main.main()
//	    /path/to/main.go:10 +0x20
//
//	goroutine 5 [chan receive]:
//	main.worker()
//	    /path/to/main.go:20 +0x40
//
// We extract: [1, 5]
func parseAllGIDs(buf []byte) []int64 {
	var gids []int64

	i := 0
	for i < len(buf) {
		end := i
		for end < len(buf) && buf[end] != '\n' {
			end++
		}

		if gid := parseGID(buf[i:end]); gid != 0 {
			gids = append(gids, gid)
		}

		i = end + 1
	}

	return gids
}
