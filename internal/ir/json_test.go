package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisalc/internal/types"
)

// buildSampleModule wires a one-function module by hand:
// f(x: integer) returns x + 2
func buildSampleModule(t *testing.T) *Module {
	m := NewModule()
	fn := m.NewNode(KindFunction, "1:1-1:40")
	fn.FunctionName = "f"
	x := fn.AddInPort(types.NewInteger("1:12"), "x", "1:12")
	result := fn.AddOutPort(types.NewInteger("1:30"), "", "1:30")
	m.AddFunction(fn)

	bin := m.NewNodeIn(fn, KindBinary, "1:35")
	bin.Operator = "+"
	left := bin.AddInPort(nil, "left", "")
	right := bin.AddInPort(nil, "right", "")
	out := bin.AddOutPort(types.NewInteger("1:35"), "", "")

	lit := m.NewNodeIn(fn, KindLiteral, "1:37")
	lit.Value = int64(2)
	litOut := lit.AddOutPort(types.NewInteger("1:37"), "value", "")

	_, err := m.Connect(x, left, fn)
	require.NoError(t, err)
	_, err = m.Connect(litOut, right, fn)
	require.NoError(t, err)
	_, err = m.Connect(out, result, fn)
	require.NoError(t, err)
	return m
}

func TestJSONRoundTrip(t *testing.T) {
	m := buildSampleModule(t)

	first, err := m.MarshalJSON()
	require.NoError(t, err)

	restored, err := LoadModule(first)
	require.NoError(t, err)
	second, err := restored.MarshalJSON()
	require.NoError(t, err)

	var a, b interface{}
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))
	assert.Equal(t, a, b)
}

func TestLoadModuleRestoresStructure(t *testing.T) {
	m := buildSampleModule(t)
	data, err := m.MarshalJSON()
	require.NoError(t, err)

	restored, err := LoadModule(data)
	require.NoError(t, err)

	fn := restored.Function("f")
	require.NotNil(t, fn)
	assert.Len(t, fn.Nodes, 2)
	assert.Len(t, fn.Edges, 3)

	// the function output is fed by the binary node
	src := restored.SourceNode(fn.OutPorts[0])
	require.NotNil(t, src)
	assert.Equal(t, KindBinary, src.Name)
	assert.Equal(t, "+", src.Operator)

	// literal values survive as integers
	for _, n := range fn.Nodes {
		if n.Name == KindLiteral {
			assert.Equal(t, int64(2), n.Value)
		}
	}
}

func TestGraphMLExport(t *testing.T) {
	m := buildSampleModule(t)
	gml := m.GraphML()
	assert.Contains(t, gml, "<graphml")
	assert.Contains(t, gml, `<data key="type">Lambda</data>`)
	assert.Contains(t, gml, `sourceport="out0"`)
	assert.Contains(t, gml, `<port name="in0"`)
}
