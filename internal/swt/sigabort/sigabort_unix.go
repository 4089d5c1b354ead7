//go:build unix

package sigabort

import (
	"os"

	"golang.org/x/sys/unix"
)

// lookupSignal resolves a "SIG"-prefixed upper-case name. SIGKILL and
// SIGSTOP cannot be caught and are rejected.
func lookupSignal(name string) (os.Signal, bool) {
	sig := unix.SignalNum(name)
	if sig == 0 || sig == unix.SIGKILL || sig == unix.SIGSTOP {
		return nil, false
	}
	return sig, true
}
