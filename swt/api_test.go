package swt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kolkov/swtrace/swt"
)

func TestMisusePanics(t *testing.T) {
	swt.Init()

	assert.PanicsWithValue(t, "tracing not started on this thread", func() { swt.StopTracing() })

	swt.StartTracing()
	assert.PanicsWithValue(t, "tracing was already started for this thread!", swt.StartTracing)

	trace := swt.StopTracing()
	assert.PanicsWithValue(t, "software trace index out of bounds", func() { trace.Loc(0) })
}

func TestStatusesAreExported(t *testing.T) {
	swt.Init()

	swt.StartTracing()
	swt.RecordLoc(3, 2, 1)
	trace := swt.StopTracing()

	assert.Equal(t, swt.StatusComplete, trace.Status())
	assert.Equal(t, swt.Loc{CrateHash: 3, DefIdx: 2, BbIdx: 1}, trace.Loc(0))
	assert.Equal(t, int64(1), swt.GetStats().Records)
	assert.False(t, swt.IsTracing())
}
