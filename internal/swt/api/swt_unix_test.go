//go:build unix

package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kolkov/swtrace/internal/swt/recorder"
	"github.com/kolkov/swtrace/internal/swt/sigabort"
)

func TestInvalidateOnSignal(t *testing.T) {
	Init()

	stop, err := InvalidateOnSignal("SIGUSR2")
	require.NoError(t, err)
	defer stop()

	StartTracing()
	RecordLoc(7, 7, 7)

	require.NoError(t, unix.Kill(unix.Getpid(), unix.SIGUSR2))

	// IsTracing looks up the calling goroutine, so poll here rather than
	// from a helper goroutine.
	deadline := time.Now().Add(5 * time.Second)
	for IsTracing() {
		if time.Now().After(deadline) {
			t.Fatal("session not invalidated by SIGUSR2")
		}
		time.Sleep(time.Millisecond)
	}

	RecordLoc(7, 7, 8)
	tr := StopTracing()
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, recorder.StatusInvalidated, tr.Status())
}

func TestInvalidateOnSignalUnknownName(t *testing.T) {
	_, err := InvalidateOnSignal("SIGNOPE")
	assert.ErrorIs(t, err, sigabort.ErrUnknownSignal)
}
