package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/ir"
)

func TestGetUnboundFaults(t *testing.T) {
	f := New().With("user", ir.String("alice"))

	_, err := f.Get("token")
	require.Error(t, err)

	var unbound *UnboundSymbolError
	require.True(t, errors.As(err, &unbound))
	assert.Equal(t, Symbol("token"), unbound.Symbol)
	assert.Equal(t, []Symbol{"user"}, unbound.Bound)
}

func TestGetBound(t *testing.T) {
	f := New().With("n", ir.Int(3))
	v, err := f.Get("n")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(3), v)
}

func TestNoneCountsAsBound(t *testing.T) {
	f := New().With("error", ir.None{})
	assert.True(t, f.Has("error"))

	v, err := f.Get("error")
	require.NoError(t, err)
	assert.True(t, ir.IsNone(v))
}

func TestWithIsImmutable(t *testing.T) {
	base := New().With("a", ir.Int(1))
	derived := base.With("b", ir.Int(2))
	rebound := base.With("a", ir.Int(9))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, derived.Len())

	v, err := base.Get("a")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v)

	v, err = rebound.Get("a")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(9), v)
}

func TestExtendConflictsFavorNew(t *testing.T) {
	base := New().With("a", ir.Int(1)).With("b", ir.Int(2))
	ext := base.Extend(map[Symbol]ir.Value{"b": ir.Int(20), "c": ir.Int(3)})

	assert.Equal(t, 3, ext.Len())
	v, err := ext.Get("b")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(20), v)

	// base untouched
	v, err = base.Get("b")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2), v)
}

func TestCarriesAll(t *testing.T) {
	prev := New().With("a", ir.Int(1)).With("b", ir.Int(2))

	full := prev.With("c", ir.Int(3))
	_, ok := full.CarriesAll(prev)
	assert.True(t, ok)

	partial := New().With("a", ir.Int(1))
	dropped, ok := partial.CarriesAll(prev)
	assert.False(t, ok)
	assert.Equal(t, Symbol("b"), dropped)
}

func TestObject(t *testing.T) {
	f := New().With("user", ir.String("alice")).With("error", ir.None{})
	obj := f.Object()
	assert.Equal(t, ir.Object{"user": ir.String("alice"), "error": ir.None{}}, obj)
}

func TestFrameSetEmpty(t *testing.T) {
	assert.True(t, FrameSet{}.Empty())
	assert.True(t, FrameSet(nil).Empty())
	assert.False(t, FrameSet{New()}.Empty())
}
