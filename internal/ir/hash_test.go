package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterministic(t *testing.T) {
	input := Object{"name": String("north")}
	output := Object{"herdName": String("north")}

	a, err := EventID("round-1", "HerdGrouping.create", input, output, 2)
	require.NoError(t, err)
	b, err := EventID("round-1", "HerdGrouping.create", input, output, 2)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex SHA-256
}

func TestEventIDSensitivity(t *testing.T) {
	base := func() (string, error) {
		return EventID("round-1", "A.b", Object{"x": Int(1)}, Object{}, 1)
	}
	ref, err := base()
	require.NoError(t, err)

	variants := []func() (string, error){
		func() (string, error) { return EventID("round-2", "A.b", Object{"x": Int(1)}, Object{}, 1) },
		func() (string, error) { return EventID("round-1", "A.c", Object{"x": Int(1)}, Object{}, 1) },
		func() (string, error) { return EventID("round-1", "A.b", Object{"x": Int(2)}, Object{}, 1) },
		func() (string, error) { return EventID("round-1", "A.b", Object{"x": Int(1)}, Object{}, 2) },
	}
	for i, v := range variants {
		id, err := v()
		require.NoError(t, err)
		assert.NotEqual(t, ref, id, "variant %d", i)
	}
}

func TestBindingHashDomainSeparation(t *testing.T) {
	// The same canonical payload must hash differently under the event
	// and binding domains.
	obj := Object{"a": Int(1)}

	bindingHash, err := BindingHash(obj)
	require.NoError(t, err)

	eventStyle := hashWithDomain(DomainEvent, mustCanonical(t, obj))
	assert.NotEqual(t, eventStyle, bindingHash)
}

func TestBindingHashNoneBranch(t *testing.T) {
	// None is a bound value: a frame with an explicit None branch hashes
	// differently from one missing the symbol.
	with, err := BindingHash(Object{"user": String("a"), "error": None{}})
	require.NoError(t, err)
	without, err := BindingHash(Object{"user": String("a")})
	require.NoError(t, err)
	assert.NotEqual(t, with, without)
}

func TestMustBindingHashPanicsOnBadValue(t *testing.T) {
	assert.Panics(t, func() {
		MustBindingHash(Object{"x": nil})
	})
}

func mustCanonical(t *testing.T, v Value) []byte {
	t.Helper()
	data, err := MarshalCanonical(v)
	require.NoError(t, err)
	return data
}
