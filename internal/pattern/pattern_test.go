package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
)

func event(action string, input, output ir.Object) *ir.ActionEvent {
	return &ir.ActionEvent{
		ID:     "ev-" + action,
		Round:  "round-1",
		Action: ir.ActionRef(action),
		Input:  input,
		Output: output,
	}
}

func TestMatchLiteralAndSymbol(t *testing.T) {
	ev := event("Requests.request",
		ir.Object{"path": ir.String("/x"), "token": ir.String("t1")},
		ir.Object{"request": ir.String("req-1")},
	)

	p := Pattern{
		Action: "Requests.request",
		Input: map[string]Term{
			"path":  Lit(ir.String("/x")),
			"token": Sym("token"),
		},
		Output: map[string]Term{
			"request": Sym("request"),
		},
	}

	f, ok := p.Match(ev, frame.New())
	require.True(t, ok)

	v, err := f.Get("token")
	require.NoError(t, err)
	assert.Equal(t, ir.String("t1"), v)
	v, err = f.Get("request")
	require.NoError(t, err)
	assert.Equal(t, ir.String("req-1"), v)
}

func TestMatchFailures(t *testing.T) {
	ev := event("A.b", ir.Object{"x": ir.Int(1)}, ir.Object{})

	tests := []struct {
		name string
		p    Pattern
	}{
		{"wrong action", Pattern{Action: "A.c"}},
		{"literal mismatch", Pattern{Action: "A.b", Input: map[string]Term{"x": Lit(ir.Int(2))}}},
		{"absent field", Pattern{Action: "A.b", Input: map[string]Term{"y": Sym("y")}}},
		{"absent output field", Pattern{Action: "A.b", Output: map[string]Term{"z": Sym("z")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.p.Match(ev, frame.New())
			assert.False(t, ok)
		})
	}
}

func TestMatchNoneIsPresent(t *testing.T) {
	// An explicit None branch satisfies field presence and binds.
	ev := event("Auth.check", ir.Object{}, ir.Object{"error": ir.None{}})
	p := Pattern{Action: "Auth.check", Output: map[string]Term{"error": Sym("err")}}

	f, ok := p.Match(ev, frame.New())
	require.True(t, ok)
	v, err := f.Get("err")
	require.NoError(t, err)
	assert.True(t, ir.IsNone(v))
}

func TestRepeatedSymbolConsistency(t *testing.T) {
	p := Pattern{
		Action: "Pair.make",
		Input:  map[string]Term{"a": Sym("v"), "b": Sym("v")},
	}

	same := event("Pair.make", ir.Object{"a": ir.Int(1), "b": ir.Int(1)}, ir.Object{})
	_, ok := p.Match(same, frame.New())
	assert.True(t, ok)

	diff := event("Pair.make", ir.Object{"a": ir.Int(1), "b": ir.Int(2)}, ir.Object{})
	_, ok = p.Match(diff, frame.New())
	assert.False(t, ok)
}

func TestMatchAgainstBoundFrame(t *testing.T) {
	p := Pattern{Action: "A.b", Input: map[string]Term{"x": Sym("x")}}
	ev := event("A.b", ir.Object{"x": ir.Int(1)}, ir.Object{})

	_, ok := p.Match(ev, frame.New().With("x", ir.Int(1)))
	assert.True(t, ok)

	_, ok = p.Match(ev, frame.New().With("x", ir.Int(2)))
	assert.False(t, ok)
}

func TestMatchAllConjunctionJoin(t *testing.T) {
	events := []*ir.ActionEvent{
		event("Requests.request", ir.Object{"name": ir.String("n1")}, ir.Object{"request": ir.String("r1")}),
		event("Herd.create", ir.Object{"name": ir.String("n1")}, ir.Object{"herdName": ir.String("n1")}),
		event("Herd.create", ir.Object{"name": ir.String("n2")}, ir.Object{"herdName": ir.String("n2")}),
	}

	when := []Pattern{
		{Action: "Requests.request", Input: map[string]Term{"name": Sym("name")}, Output: map[string]Term{"request": Sym("request")}},
		{Action: "Herd.create", Input: map[string]Term{"name": Sym("name")}},
	}

	frames := MatchAll(when, events)
	// The shared name symbol restricts the join to the n1 create event.
	require.Len(t, frames, 1)
	v, err := frames[0].Get("name")
	require.NoError(t, err)
	assert.Equal(t, ir.String("n1"), v)
}

func TestMatchAllEnumeratesCombinations(t *testing.T) {
	events := []*ir.ActionEvent{
		event("A.b", ir.Object{"x": ir.Int(1)}, ir.Object{}),
		event("A.b", ir.Object{"x": ir.Int(2)}, ir.Object{}),
	}
	when := []Pattern{{Action: "A.b", Input: map[string]Term{"x": Sym("x")}}}

	frames := MatchAll(when, events)
	require.Len(t, frames, 2)
}

func TestMatchAllReorderCommutative(t *testing.T) {
	events := []*ir.ActionEvent{
		event("Requests.request", ir.Object{"name": ir.String("n1")}, ir.Object{"request": ir.String("r1")}),
		event("Herd.create", ir.Object{"name": ir.String("n1")}, ir.Object{"herdName": ir.String("n1")}),
	}

	a := []Pattern{
		{Action: "Requests.request", Input: map[string]Term{"name": Sym("name")}},
		{Action: "Herd.create", Input: map[string]Term{"name": Sym("name")}},
	}
	b := []Pattern{a[1], a[0]}

	hashes := func(fs frame.FrameSet) []string {
		out := make([]string, len(fs))
		for i, f := range fs {
			out[i] = ir.MustBindingHash(f.Object())
		}
		return out
	}

	assert.ElementsMatch(t, hashes(MatchAll(a, events)), hashes(MatchAll(b, events)))
}

func TestMatchAllMismatchYieldsNoFrames(t *testing.T) {
	events := []*ir.ActionEvent{
		event("A.b", ir.Object{"x": ir.Int(1)}, ir.Object{}),
	}
	when := []Pattern{
		{Action: "A.b", Input: map[string]Term{"x": Sym("x")}},
		{Action: "C.d"},
	}

	assert.True(t, MatchAll(when, events).Empty())
	assert.True(t, MatchAll(when, nil).Empty())
}
