package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/ir"
)

func testEvent(t *testing.T, round string, seq int64) *ir.ActionEvent {
	t.Helper()
	ev, err := ir.NewActionEvent(round, "A.b", ir.Object{}, ir.Object{}, seq)
	require.NoError(t, err)
	return ev
}

func TestRoundFIFO(t *testing.T) {
	rd := newRound("round-1")
	e1 := testEvent(t, "round-1", 1)
	e2 := testEvent(t, "round-1", 2)
	rd.add(e1)
	rd.add(e2)

	assert.Same(t, e1, rd.next())
	assert.Same(t, e2, rd.next())
	assert.Nil(t, rd.next())

	// Dequeued events stay visible to matching.
	assert.Len(t, rd.snapshot(), 2)
}

func TestRoundMarkFired(t *testing.T) {
	rd := newRound("round-1")
	assert.True(t, rd.markFired("s1", "h1"))
	assert.False(t, rd.markFired("s1", "h1"))
	// Same hash under a different sync is a distinct ledger entry.
	assert.True(t, rd.markFired("s2", "h1"))
	assert.True(t, rd.markFired("s1", "h2"))
}

func TestRoundCountStep(t *testing.T) {
	rd := newRound("round-1")
	assert.True(t, rd.countStep(2))
	assert.True(t, rd.countStep(2))
	assert.False(t, rd.countStep(2))
}

func TestRoundResponseFirstWins(t *testing.T) {
	rd := newRound("round-1")
	assert.Nil(t, rd.responseBody())

	assert.True(t, rd.markResponded("req-1"))
	rd.setResponse(ir.Object{"n": ir.Int(1)})

	assert.False(t, rd.markResponded("req-1"))
	rd.setResponse(ir.Object{"n": ir.Int(2)})

	assert.Equal(t, ir.Object{"n": ir.Int(1)}, rd.responseBody())
}

func TestClockMonotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	g := UUIDv7Generator{}
	assert.NotEqual(t, g.Generate(), g.Generate())
}
