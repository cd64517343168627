package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/ir"
)

func TestRunCreateHerdScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/create-herd.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Responses, 1)
	assert.Equal(t, ir.Object{"herdName": ir.String("north-pasture")}, result.Responses[0])

	// One inbound event, one create, one respond - no adapter events.
	events := result.Recorder.Events()
	require.Len(t, events, 3)
	assert.Equal(t, ir.ActionRef("Requests.request"), events[0].Action)
	assert.Equal(t, ir.ActionRef("HerdGrouping.create"), events[1].Action)
	assert.Equal(t, ir.ActionRef("Requests.respond"), events[2].Action)
}

func TestRunAuthFailureScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/auth-failure.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Responses, 1)
	assert.Equal(t, ir.String("invalid token"), result.Responses[0][ir.ErrorField])
}

func TestRunAbandonedRequest(t *testing.T) {
	scenario := &Scenario{
		Name: "abandoned",
		Requests: []RequestStep{{
			Args:      map[string]any{"path": "/no/such/route"},
			Abandoned: true,
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Responses, 1)
	assert.Nil(t, result.Responses[0])
}

func TestRunFailsOnWrongExpectation(t *testing.T) {
	scenario := &Scenario{
		Name: "wrong-expect",
		Requests: []RequestStep{{
			Args:   map[string]any{"path": "/HerdGrouping/createHerd", "token": "tok-x", "name": "n"},
			Expect: map[string]any{"herdName": "n"},
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
}

func TestMatchSubsetIgnoresExtraFields(t *testing.T) {
	body := ir.Object{"a": ir.Int(1), "b": ir.String("x")}
	assert.NoError(t, matchSubset(map[string]any{"a": 1}, body))
	assert.Error(t, matchSubset(map[string]any{"a": 2}, body))
	assert.Error(t, matchSubset(map[string]any{"missing": 1}, body))
}

func TestGoldenTraces(t *testing.T) {
	for _, name := range []string{"create-herd", "auth-failure"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			RunWithGolden(t, scenario, "")
		})
	}
}
