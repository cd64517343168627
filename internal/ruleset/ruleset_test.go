package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/demo"
	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/transport"
)

const herdRules = `
syncs: {
	"create-herd": {
		when: [{
			action: "Requests.request"
			input: {path: "/HerdGrouping/createHerd", token: "$token", name: "$name"}
			output: {request: "$request"}
		}]
		where: [
			{query: {adapter: "UserAuth._byToken", input: {token: "$token"}, output: {user: "$user", error: "$authError"}}},
			{filter: {symbol: "$authError", isNone: true}},
		]
		then: [{action: "HerdGrouping.create", args: {user: "$user", name: "$name"}}]
	}
	"create-herd-respond": {
		when: [
			{
				action: "Requests.request"
				input: {path: "/HerdGrouping/createHerd", name: "$name"}
				output: {request: "$request"}
			},
			{
				action: "HerdGrouping.create"
				input: {name: "$name"}
				output: {herdName: "$herd"}
			},
		]
		then: [{action: "Requests.respond", args: {request: "$request", herdName: "$herd"}}]
	}
}
`

func TestCompileStringDeclarationOrder(t *testing.T) {
	app := demo.NewApp()
	syncs, err := CompileString(herdRules, app.Registry)
	require.NoError(t, err)
	require.Len(t, syncs, 2)
	assert.Equal(t, "create-herd", syncs[0].Name)
	assert.Equal(t, "create-herd-respond", syncs[1].Name)

	require.Len(t, syncs[0].When, 1)
	require.Len(t, syncs[0].Where, 2)
	require.Len(t, syncs[0].Then, 1)
	assert.Equal(t, ir.ActionRef("HerdGrouping.create"), syncs[0].Then[0].Action)
}

func TestCompiledRulesDriveEngine(t *testing.T) {
	app := demo.NewAppWith(transport.NewRequestsWithIDs("req-1"))
	syncs, err := CompileString(herdRules, app.Registry)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = app.Registry.Invoke(ctx, "UserAuth.register", ir.Object{
		"user":  ir.String("alice"),
		"token": ir.String("tok-1"),
	})
	require.NoError(t, err)

	eng, err := engine.New(app.Registry, syncs, engine.NewFixedGenerator("round-1"))
	require.NoError(t, err)

	body, err := eng.HandleRequest(ctx, ir.Object{
		"path":  ir.String("/HerdGrouping/createHerd"),
		"token": ir.String("tok-1"),
		"name":  ir.String("north"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"herdName": ir.String("north")}, body)
}

func TestCompileTermForms(t *testing.T) {
	src := `
syncs: {
	"terms": {
		when: [{
			action: "A.b"
			input: {
				sym:     "$bound"
				str:     "plain"
				dollar:  "$$literal"
				num:     42
				flag:    true
				nothing: null
			}
		}]
		then: [{action: "C.d"}]
	}
}
`
	syncs, err := CompileString(src, nil)
	require.NoError(t, err)
	require.Len(t, syncs, 1)
	input := syncs[0].When[0].Input

	sym, isSym := input["sym"].IsSymbol()
	require.True(t, isSym)
	assert.Equal(t, "bound", string(sym))

	_, isSym = input["str"].IsSymbol()
	assert.False(t, isSym)
	assert.Equal(t, ir.String("plain"), input["str"].Literal())
	assert.Equal(t, ir.String("$literal"), input["dollar"].Literal())
	assert.Equal(t, ir.Int(42), input["num"].Literal())
	assert.Equal(t, ir.Bool(true), input["flag"].Literal())
	assert.True(t, ir.IsNone(input["nothing"].Literal()))
}

func TestCompileFilterForms(t *testing.T) {
	src := `
syncs: {
	"filters": {
		when: [{action: "A.b", output: {v: "$v"}}]
		where: [
			{filter: {symbol: "$v", isNone: false}},
			{filter: {symbol: "$v", equals: 7}},
		]
		then: [{action: "C.d"}]
	}
}
`
	syncs, err := CompileString(src, nil)
	require.NoError(t, err)
	require.Len(t, syncs[0].Where, 2)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no syncs struct", `rules: {}`},
		{"missing when", `syncs: {s: {then: [{action: "A.b"}]}}`},
		{"missing then", `syncs: {s: {when: [{action: "A.b"}]}}`},
		{"pattern without action", `syncs: {s: {when: [{input: {}}], then: [{action: "A.b"}]}}`},
		{"empty symbol", `syncs: {s: {when: [{action: "A.b", input: {x: "$"}}], then: [{action: "A.b"}]}}`},
		{"stage neither query nor filter", `syncs: {s: {when: [{action: "A.b"}], where: [{join: {}}], then: [{action: "A.b"}]}}`},
		{"filter without condition", `syncs: {s: {when: [{action: "A.b"}], where: [{filter: {symbol: "$v"}}], then: [{action: "A.b"}]}}`},
		{"filter equals symbol", `syncs: {s: {when: [{action: "A.b"}], where: [{filter: {symbol: "$v", equals: "$w"}}], then: [{action: "A.b"}]}}`},
		{"query without adapter", `syncs: {s: {when: [{action: "A.b"}], where: [{query: {output: {u: "$u"}}}], then: [{action: "A.b"}]}}`},
		{"query output not a symbol", `syncs: {s: {when: [{action: "A.b"}], where: [{query: {adapter: "Q.r", output: {u: "literal"}}}], then: [{action: "A.b"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, nil)
			require.Error(t, err)
		})
	}
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.cue")
	require.NoError(t, os.WriteFile(path, []byte(herdRules), 0o644))

	syncs, err := CompileFile(path, demo.NewApp().Registry)
	require.NoError(t, err)
	assert.Len(t, syncs, 2)

	_, err = CompileFile(filepath.Join(t.TempDir(), "absent.cue"), nil)
	require.Error(t, err)
}
