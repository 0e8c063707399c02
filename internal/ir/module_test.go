package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "sisalc/internal/errors"
	"sisalc/internal/types"
)

func TestConnectEnforcesSingleIncomingEdge(t *testing.T) {
	m := NewModule()
	a := m.NewNode(KindLiteral, "")
	b := m.NewNode(KindLiteral, "")
	sink := m.NewNode(KindBinary, "")

	aOut := a.AddOutPort(types.NewInteger(""), "value", "")
	bOut := b.AddOutPort(types.NewInteger(""), "value", "")
	in := sink.AddInPort(nil, "left", "")

	_, err := m.Connect(aOut, in, nil)
	require.NoError(t, err)
	_, err = m.Connect(bOut, in, nil)
	assert.Error(t, err)
}

func TestConnectFillsEmptyTargetType(t *testing.T) {
	m := NewModule()
	src := m.NewNode(KindLiteral, "")
	dst := m.NewNode(KindBinary, "")
	out := src.AddOutPort(types.NewInteger(""), "value", "")
	in := dst.AddInPort(nil, "left", "")

	_, err := m.Connect(out, in, nil)
	require.NoError(t, err)
	require.NotNil(t, in.Type)
	assert.Equal(t, types.Integer, in.Type.Kind)
}

func TestConnectAnyAdoptsConcreteType(t *testing.T) {
	m := NewModule()
	src := m.NewNode(KindLiteral, "")
	dst := m.NewNode(KindFunctionCall, "")
	out := src.AddOutPort(types.NewInteger(""), "value", "")
	in := dst.AddInPort(types.NewAny(""), "x", "")

	_, err := m.Connect(out, in, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Integer, in.Type.Kind)
}

func TestConnectNarrowingWarnsButSucceeds(t *testing.T) {
	m := NewModule()
	src := m.NewNode(KindLiteral, "")
	dst := m.NewNode(KindBinary, "")
	out := src.AddOutPort(types.NewInteger("1:1"), "value", "")
	in := dst.AddInPort(types.NewReal("1:5"), "left", "")

	_, err := m.Connect(out, in, nil)
	require.NoError(t, err)
	assert.False(t, m.Warnings.Empty())
}

func TestConnectIncompatibleTypesFails(t *testing.T) {
	m := NewModule()
	src := m.NewNode(KindLiteral, "")
	dst := m.NewNode(KindBinary, "")
	out := src.AddOutPort(types.NewBoolean("1:1"), "value", "")
	in := dst.AddInPort(types.NewArray(types.NewInteger(""), ""), "left", "")

	_, err := m.Connect(out, in, nil)
	require.Error(t, err)
	compileErr, ok := err.(*cerrors.CompileError)
	require.True(t, ok)
	assert.Equal(t, cerrors.TypeMismatch, compileErr.Type)
}

func TestDeleteNodeRecyclesIDs(t *testing.T) {
	m := NewModule()
	n := m.NewNode(KindLiteral, "")
	id := n.ID
	m.DeleteNode(n, false)
	assert.Nil(t, m.Node(id))

	recycled := m.NewNode(KindLiteral, "")
	assert.Equal(t, id, recycled.ID)
}

func TestDeleteNodeCascadesOverRegions(t *testing.T) {
	m := NewModule()
	let := m.NewNode(KindLet, "")
	init := m.NewNode(KindInit, "")
	body := m.NewNode(KindBody, "")
	let.Init = init
	let.Body = body
	child := m.NewNodeIn(body, KindLiteral, "")

	m.DeleteNode(let, false)
	assert.Nil(t, m.Node(init.ID))
	assert.Nil(t, m.Node(body.ID))
	assert.Nil(t, m.Node(child.ID))
}

func TestReattachTargetRefusesOccupiedPort(t *testing.T) {
	m := NewModule()
	a := m.NewNode(KindLiteral, "")
	b := m.NewNode(KindLiteral, "")
	sink := m.NewNode(KindBinary, "")

	aOut := a.AddOutPort(types.NewInteger(""), "value", "")
	bOut := b.AddOutPort(types.NewInteger(""), "value", "")
	left := sink.AddInPort(nil, "left", "")
	right := sink.AddInPort(nil, "right", "")

	first, err := m.Connect(aOut, left, nil)
	require.NoError(t, err)
	second, err := m.Connect(bOut, right, nil)
	require.NoError(t, err)

	assert.Error(t, m.ReattachTarget(second, left))
	require.NoError(t, m.ReattachTarget(first, first.To))
}

func TestReattachOriginMovesIndices(t *testing.T) {
	m := NewModule()
	a := m.NewNode(KindLiteral, "")
	b := m.NewNode(KindLiteral, "")
	sink := m.NewNode(KindBinary, "")

	aOut := a.AddOutPort(types.NewInteger(""), "value", "")
	bOut := b.AddOutPort(types.NewInteger(""), "value", "")
	in := sink.AddInPort(nil, "left", "")

	edge, err := m.Connect(aOut, in, nil)
	require.NoError(t, err)
	m.ReattachOrigin(edge, bOut)

	assert.Empty(t, m.EdgesFrom(aOut))
	require.Len(t, m.EdgesFrom(bOut), 1)
	assert.Equal(t, edge, m.EdgesFrom(bOut)[0])
}

func TestParentOf(t *testing.T) {
	m := NewModule()
	fn := m.NewNode(KindFunction, "")
	child := m.NewNodeIn(fn, KindLiteral, "")
	assert.Equal(t, fn, m.ParentOf(child))
	assert.Nil(t, m.ParentOf(fn))
}
