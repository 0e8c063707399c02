package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarEquality(t *testing.T) {
	assert.True(t, Equal(NewInteger("1:1"), NewInteger("2:2")))
	assert.False(t, Equal(NewInteger(""), NewReal("")))
	assert.False(t, Equal(NewBoolean(""), NewInteger("")))
}

func TestArrayEquality(t *testing.T) {
	a := NewArray(NewInteger(""), "")
	b := NewArray(NewInteger(""), "")
	c := NewArray(NewReal(""), "")
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, NewInteger("")))

	nested := NewArray(NewArray(NewInteger(""), ""), "")
	assert.Equal(t, 2, nested.Depth())
	assert.Equal(t, Integer, nested.BottomElementType().Kind)
}

func TestRecordEqualityIgnoresFieldOrder(t *testing.T) {
	a := NewRecord([]Field{
		{Name: "x", Type: NewInteger("")},
		{Name: "y", Type: NewReal("")},
	}, "")
	b := NewRecord([]Field{
		{Name: "y", Type: NewReal("")},
		{Name: "x", Type: NewInteger("")},
	}, "")
	c := NewRecord([]Field{
		{Name: "x", Type: NewInteger("")},
		{Name: "z", Type: NewReal("")},
	}, "")
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestNamedAliasIsTransparent(t *testing.T) {
	underlying := NewArray(NewInteger(""), "")
	named := Named("Ints", underlying)
	assert.True(t, Equal(named, underlying))
	assert.Equal(t, "Ints", named.String())
	assert.Equal(t, "array of integer", underlying.String())
}

func TestSignatureIsOrderIndependent(t *testing.T) {
	a := NewRecord([]Field{
		{Name: "x", Type: NewInteger("")},
		{Name: "y", Type: NewReal("")},
	}, "")
	b := NewRecord([]Field{
		{Name: "y", Type: NewReal("")},
		{Name: "x", Type: NewInteger("")},
	}, "")
	assert.Equal(t, a.Signature(), b.Signature())
}

func TestWireRoundTrip(t *testing.T) {
	original := NewRecord([]Field{
		{Name: "values", Type: NewArray(NewInteger("3:1"), "3:1")},
		{Name: "scale", Type: NewReal("3:9")},
	}, "3:0")

	restored, err := FromWire(original.Wire())
	require.NoError(t, err)
	assert.True(t, Equal(original, restored))

	stream := NewStream(NewInteger(""), "")
	restoredStream, err := FromWire(stream.Wire())
	require.NoError(t, err)
	assert.True(t, restoredStream.IsStream())
}

func TestFromWireRejectsUnknownType(t *testing.T) {
	_, err := FromWire(&Wire{Name: "quaternion"})
	assert.Error(t, err)
}
