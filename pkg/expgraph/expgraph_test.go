package expgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
)

func TestNewVertexAssignsStableIDs(t *testing.T) {
	g := New()
	require.Equal(t, 0, len(g.Vertices()))
	v1 := g.NewVertex("v1")
	require.Equal(t, 1, len(g.Vertices()))
	assert.Equal(t, VertexID(1), v1.ID())
}

func TestNewEdgeRejectsUnknownVertex(t *testing.T) {
	g := New()
	v1 := g.NewVertex("v1")
	other := New().NewVertex("other")

	_, err := g.NewEdge(v1, other)
	var nsv *NoSuchVertexError
	assert.True(t, errors.As(err, &nsv))
}

func TestDeletedVertexIDsAreNeverReused(t *testing.T) {
	g := New()
	v1 := g.NewVertex("v1")
	v2 := g.NewVertex("v2")
	v3 := g.NewVertex("v3")
	v1.Delete()
	v2.Delete()
	v3.Delete()

	v7 := g.NewVertex("v7")
	assert.Greater(t, int(v7.ID()), int(v3.ID()))
}

func TestFindVertexByName(t *testing.T) {
	g := New()
	v1 := g.NewVertex("TEST")
	g.NewVertex("v2")

	found, ok := g.FindVertex("TEST")
	require.True(t, ok)
	assert.Equal(t, v1.ID(), found.ID())

	_, ok = g.FindVertex("missing")
	assert.False(t, ok)
}

func TestDecorateAttachesValueRetrievableByName(t *testing.T) {
	g := New()
	v := g.NewVertex("v1")
	require.NoError(t, v.Decorate("host", struct{ Hostname string }{"h1"}, nil, nil))
	assert.True(t, v.IsDecoratedBy("host"))
	val, ok := v.Decorator("host")
	require.True(t, ok)
	assert.Equal(t, "h1", val.(struct{ Hostname string }).Hostname)
}

func TestDoubleDecorationWithoutHandlerIsFatal(t *testing.T) {
	g := New()
	v := g.NewVertex("v1")
	require.NoError(t, v.Decorate("host", 1, nil, nil))
	err := v.Decorate("host", 2, nil, nil)
	assert.True(t, errors.Is(err, ferrors.ErrDecoratorConflict))
}

func TestDecorateEnforcesRequiredPrecursor(t *testing.T) {
	g := New()
	v := g.NewVertex("v1")
	err := v.Decorate("router", 1, []string{"host"}, nil)
	assert.Error(t, err)

	require.NoError(t, v.Decorate("host", 1, nil, nil))
	require.NoError(t, v.Decorate("router", 1, []string{"host"}, nil))
}

func TestDecorateConflictHandlerResolvesCollision(t *testing.T) {
	g := New()
	v := g.NewVertex("v1")
	require.NoError(t, v.Decorate("host", 1, nil, nil))

	handler := func(name string, existing, incoming interface{}) (interface{}, error) {
		return incoming, nil
	}
	require.NoError(t, v.Decorate("host", 2, nil, handler))
	val, _ := v.Decorator("host")
	assert.Equal(t, 2, val)
}

func TestEdgeIsDecorable(t *testing.T) {
	g := New()
	v1 := g.NewVertex("v1")
	v2 := g.NewVertex("v2")
	e, err := g.NewEdge(v1, v2)
	require.NoError(t, err)
	require.NoError(t, e.Decorate("link", "1gbps", nil, nil))
	assert.True(t, e.IsDecoratedBy("link"))
}

func TestDeleteVertexRemovesIncidentEdges(t *testing.T) {
	g := New()
	v1 := g.NewVertex("v1")
	v2 := g.NewVertex("v2")
	e, err := g.NewEdge(v1, v2)
	require.NoError(t, err)
	require.Len(t, g.Edges(), 1)

	v1.Delete()
	assert.Empty(t, g.Edges())
	_, ok := g.FindVertexByID(e.A)
	assert.False(t, ok)
}
