package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/loomworks/loom/internal/ir"
)

// snapshot flattens a scenario result into a single canonical object:
// the recorded events and firings in order, plus the responses. Content
// hashes in event ids keep the snapshot sensitive to payload drift.
func snapshot(name string, result *Result) ir.Object {
	events := result.Recorder.Events()
	eventList := make(ir.Array, len(events))
	for i, ev := range events {
		eventList[i] = ir.Object{
			"id":     ir.String(ev.ID),
			"round":  ir.String(ev.Round),
			"action": ir.String(string(ev.Action)),
			"input":  ev.Input,
			"output": ev.Output,
			"seq":    ir.Int(ev.Seq),
		}
	}

	firings := result.Recorder.Firings()
	firingList := make(ir.Array, len(firings))
	for i, f := range firings {
		firingList[i] = ir.Object{
			"round":        ir.String(f.Round),
			"sync":         ir.String(f.Sync),
			"binding_hash": ir.String(f.BindingHash),
			"seq":          ir.Int(f.Seq),
		}
	}

	responses := make(ir.Array, len(result.Responses))
	for i, body := range result.Responses {
		if body == nil {
			responses[i] = ir.None{}
			continue
		}
		responses[i] = body
	}

	return ir.Object{
		"scenario":  ir.String(name),
		"events":    eventList,
		"firings":   firingList,
		"responses": responses,
	}
}

// RunWithGolden executes a scenario and compares its canonical trace
// snapshot against testdata/golden/{scenario.Name}.golden. Regenerate
// with go test ./internal/harness -update.
func RunWithGolden(t *testing.T, scenario *Scenario, baseDir string) *Result {
	t.Helper()

	result, err := RunIn(scenario, baseDir)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	data, err := ir.MarshalCanonical(snapshot(scenario.Name, result))
	if err != nil {
		t.Fatalf("marshal snapshot %s: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result
}
