package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/testutil"
	"github.com/loomworks/loom/internal/transport"
)

func setupApp(t *testing.T, rounds int) (*App, *engine.Engine) {
	t.Helper()
	app := NewAppWith(transport.NewRequestsWithIDs(testutil.Tokens("req", rounds)...))
	eng, err := app.Engine(engine.NewFixedGenerator(testutil.Tokens("round", rounds)...))
	require.NoError(t, err)
	return app, eng
}

func registerUser(t *testing.T, app *App, user, token string) {
	t.Helper()
	out, err := app.Registry.Invoke(context.Background(), "UserAuth.register", ir.Object{
		"user":  ir.String(user),
		"token": ir.String(token),
	})
	require.NoError(t, err)
	require.False(t, ir.IsErrorOutput(out))
}

func TestCreateHerdFlow(t *testing.T) {
	app, eng := setupApp(t, 3)
	registerUser(t, app, "alice", "tok-alice")
	ctx := context.Background()

	createHerd := ir.Object{
		"path":  ir.String("/HerdGrouping/createHerd"),
		"token": ir.String("tok-alice"),
		"name":  ir.String("north"),
	}

	body, err := eng.HandleRequest(ctx, createHerd)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"herdName": ir.String("north")}, body)

	// Creating the same herd again is a data-level failure, still
	// answered on the response channel.
	body, err = eng.HandleRequest(ctx, createHerd)
	require.NoError(t, err)
	assert.Equal(t, ir.String("herd already exists"), body[ir.ErrorField])

	// An unknown token is rejected before the herd concept is touched.
	body, err = eng.HandleRequest(ctx, ir.Object{
		"path":  ir.String("/HerdGrouping/createHerd"),
		"token": ir.String("tok-mallory"),
		"name":  ir.String("south"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.String("invalid token"), body[ir.ErrorField])

	// Exactly one response was delivered per request.
	assert.Equal(t, 3, app.Requests.ResponseCount())
}

func TestTagAndAddAnimalFlow(t *testing.T) {
	app, eng := setupApp(t, 5)
	registerUser(t, app, "bob", "tok-bob")
	ctx := context.Background()

	body, err := eng.HandleRequest(ctx, ir.Object{
		"path":  ir.String("/HerdGrouping/createHerd"),
		"token": ir.String("tok-bob"),
		"name":  ir.String("east"),
	})
	require.NoError(t, err)
	require.Equal(t, ir.String("east"), body["herdName"])

	body, err = eng.HandleRequest(ctx, ir.Object{
		"path":    ir.String("/AnimalIdentity/tag"),
		"token":   ir.String("tok-bob"),
		"tag":     ir.String("ear-001"),
		"species": ir.String("sheep"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"tag": ir.String("ear-001")}, body)

	body, err = eng.HandleRequest(ctx, ir.Object{
		"path":  ir.String("/HerdGrouping/addAnimal"),
		"token": ir.String("tok-bob"),
		"herd":  ir.String("east"),
		"tag":   ir.String("ear-001"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), body["count"])

	// Second animal, count advances.
	body, err = eng.HandleRequest(ctx, ir.Object{
		"path":  ir.String("/HerdGrouping/addAnimal"),
		"token": ir.String("tok-bob"),
		"herd":  ir.String("east"),
		"tag":   ir.String("ear-002"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), body["count"])

	// Adding to an unknown herd reports the failure outward.
	body, err = eng.HandleRequest(ctx, ir.Object{
		"path":  ir.String("/HerdGrouping/addAnimal"),
		"token": ir.String("tok-bob"),
		"herd":  ir.String("west"),
		"tag":   ir.String("ear-003"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.String("no such herd"), body[ir.ErrorField])
}

func TestUnroutedRequestIsAbandoned(t *testing.T) {
	_, eng := setupApp(t, 1)

	_, err := eng.HandleRequest(context.Background(), ir.Object{
		"path": ir.String("/no/such/route"),
	})
	require.Error(t, err)
	assert.True(t, engine.IsAbandonedError(err))
}

func TestHerdMembersQuery(t *testing.T) {
	app := NewApp()
	ctx := context.Background()

	_, err := app.Herds.Create(ctx, ir.Object{"user": ir.String("a"), "name": ir.String("h")})
	require.NoError(t, err)
	_, err = app.Herds.AddAnimal(ctx, ir.Object{"herd": ir.String("h"), "tag": ir.String("t1")})
	require.NoError(t, err)

	out, err := app.Herds.Members(ctx, ir.Object{"herd": ir.String("h")})
	require.NoError(t, err)
	assert.Equal(t, ir.Array{ir.String("t1")}, out["members"])

	out, err = app.Herds.Members(ctx, ir.Object{"herd": ir.String("missing")})
	require.NoError(t, err)
	assert.True(t, ir.IsErrorOutput(out))
}

func TestByTokenAlwaysSetsBothBranches(t *testing.T) {
	app := NewApp()
	ctx := context.Background()
	registerUser(t, app, "alice", "tok-alice")

	out, err := app.Auth.ByToken(ctx, ir.Object{"token": ir.String("tok-alice")})
	require.NoError(t, err)
	assert.Equal(t, ir.String("alice"), out["user"])
	assert.True(t, ir.IsNone(out[ir.ErrorField]))

	out, err = app.Auth.ByToken(ctx, ir.Object{"token": ir.String("nope")})
	require.NoError(t, err)
	assert.True(t, ir.IsNone(out["user"]))
	assert.Equal(t, ir.String("invalid token"), out[ir.ErrorField])
}

func TestTagRejectsDuplicates(t *testing.T) {
	app := NewApp()
	ctx := context.Background()

	out, err := app.Animals.Tag(ctx, ir.Object{"tag": ir.String("t"), "species": ir.String("goat")})
	require.NoError(t, err)
	require.False(t, ir.IsErrorOutput(out))

	out, err = app.Animals.Tag(ctx, ir.Object{"tag": ir.String("t"), "species": ir.String("cow")})
	require.NoError(t, err)
	assert.Equal(t, ir.String("tag already assigned"), out[ir.ErrorField])
}
