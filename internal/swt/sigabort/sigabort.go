// Package sigabort turns process signals into trace invalidations.
//
// Go never runs user code inside a signal handler: the runtime catches the
// signal and forwards it to a channel read by an ordinary goroutine. Install
// starts that goroutine; for every delivered signal it calls the given
// invalidate function, which is expected to do nothing but atomic stores
// on recorder flags.
package sigabort

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
)

// ErrUnknownSignal is returned by ParseSignal for names it cannot resolve.
var ErrUnknownSignal = errors.New("sigabort: unknown signal")

// Install calls invalidate each time one of sigs is delivered, until ctx is
// done or stop is called. With no sigs, os.Interrupt is used.
//
// The returned stop function restores default signal handling and waits for
// the forwarding goroutine to exit. It is safe to call more than once.
func Install(ctx context.Context, invalidate func(), sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				invalidate()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			cancel()
			<-done
		})
	}
}

// ParseSignals resolves every name with ParseSignal.
func ParseSignals(names []string) ([]os.Signal, error) {
	sigs := make([]os.Signal, 0, len(names))
	for _, name := range names {
		sig, err := ParseSignal(name)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// ParseSignal resolves a signal name such as "SIGUSR1", "usr1" or
// "interrupt".
func ParseSignal(name string) (os.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownSignal)
	}
	if n == "INTERRUPT" {
		return os.Interrupt, nil
	}
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}

	sig, ok := lookupSignal(n)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	return sig, nil
}
