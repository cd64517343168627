// Package harness executes conformance scenarios against the real
// engine: each scenario wires the demo application with deterministic
// round tokens and request ids, drives external requests through
// engine.HandleRequest, validates responses, and snapshots the recorded
// trace for golden comparison.
package harness

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/loomworks/loom/internal/demo"
	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/ruleset"
	"github.com/loomworks/loom/internal/testutil"
	"github.com/loomworks/loom/internal/transport"
)

// Result is the outcome of one scenario execution.
type Result struct {
	Pass      bool
	Errors    []string
	Responses []ir.Object // one per request, nil where abandoned
	Recorder  *testutil.MemoryRecorder
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario against a fresh demo application. Round
// tokens and request ids are numbered sequences, so the same scenario
// always produces byte-identical traces.
func Run(scenario *Scenario) (*Result, error) {
	return RunIn(scenario, "")
}

// RunIn is Run with a base directory for resolving the scenario's rule
// file path.
func RunIn(scenario *Scenario, baseDir string) (*Result, error) {
	n := len(scenario.Requests)
	app := demo.NewAppWith(transport.NewRequestsWithIDs(testutil.Tokens("req", n)...))

	syncs := app.Syncs()
	if scenario.Rules != "" {
		path := scenario.Rules
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		compiled, err := ruleset.CompileFile(path, app.Registry)
		if err != nil {
			return nil, fmt.Errorf("compile rules: %w", err)
		}
		syncs = compiled
	}

	recorder := testutil.NewMemoryRecorder()
	eng, err := engine.New(
		app.Registry,
		syncs,
		engine.NewFixedGenerator(testutil.Tokens("round", n)...),
		engine.WithRecorder(recorder),
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	ctx := context.Background()
	result := &Result{Pass: true, Recorder: recorder}

	for i, step := range scenario.Setup {
		args, err := ir.ObjectFromNative(step.Args)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] args: %w", i, err)
		}
		out, err := app.Registry.Invoke(ctx, ir.ActionRef(step.Action), args)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Action, err)
		}
		if ir.IsErrorOutput(out) {
			return nil, fmt.Errorf("setup[%d] %s failed: %v", i, step.Action, ir.ToNative(out[ir.ErrorField]))
		}
	}

	for i, step := range scenario.Requests {
		input, err := ir.ObjectFromNative(step.Args)
		if err != nil {
			return nil, fmt.Errorf("requests[%d] args: %w", i, err)
		}

		body, err := eng.HandleRequest(ctx, input)
		switch {
		case step.Abandoned:
			result.Responses = append(result.Responses, nil)
			if !engine.IsAbandonedError(err) {
				result.addError("requests[%d]: expected abandonment, got body=%v err=%v", i, body, err)
			}
		case err != nil:
			result.Responses = append(result.Responses, nil)
			result.addError("requests[%d]: %v", i, err)
		default:
			result.Responses = append(result.Responses, body)
			if err := matchSubset(step.Expect, body); err != nil {
				result.addError("requests[%d]: %v", i, err)
			}
		}
	}

	return result, nil
}

// matchSubset checks that every expected field is present in the
// response with an equal value. Extra response fields are fine.
func matchSubset(expect map[string]any, body ir.Object) error {
	for key, want := range expect {
		wantVal, err := ir.FromNative(want)
		if err != nil {
			return fmt.Errorf("expect.%s: %w", key, err)
		}
		got, ok := body[key]
		if !ok {
			return fmt.Errorf("response missing field %q (have %v)", key, body)
		}
		if !ir.Equal(got, wantVal) {
			return fmt.Errorf("response field %q = %v, want %v", key, ir.ToNative(got), want)
		}
	}
	return nil
}
