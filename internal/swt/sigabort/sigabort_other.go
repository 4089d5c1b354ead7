//go:build !unix

package sigabort

import "os"

// lookupSignal only knows SIGINT outside unix, the one signal os/signal
// can deliver everywhere.
func lookupSignal(name string) (os.Signal, bool) {
	if name == "SIGINT" {
		return os.Interrupt, true
	}
	return nil, false
}
