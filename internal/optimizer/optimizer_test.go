package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisalc/internal/compiler"
	"sisalc/internal/config"
	"sisalc/internal/ir"
	"sisalc/internal/lexer"
	"sisalc/internal/parser"
)

func optimizeSource(t *testing.T, source string) *ir.Module {
	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()
	require.False(t, scanner.HadError(), "scan errors: %v", scanner.Errors())
	astModule, err := parser.NewParser(tokens).Parse()
	require.NoError(t, err)
	module, _, err := compiler.Build(astModule)
	require.NoError(t, err)
	require.NoError(t, New(module, config.Default()).Optimize())
	return module
}

func TestConstantFoldingCollapsesExpression(t *testing.T) {
	m := optimizeSource(t, "function f(returns integer) 2 + 3 * 4 end function")
	fn := m.Function("f")
	require.NotNil(t, fn)

	// a single literal remains, wired directly to the output
	require.Len(t, fn.Nodes, 1)
	lit := fn.Nodes[0]
	assert.Equal(t, ir.KindLiteral, lit.Name)
	assert.Equal(t, int64(14), lit.Value)
	assert.Equal(t, lit, m.SourceNode(fn.OutPorts[0]))
	assert.Empty(t, m.NodesNamed(ir.KindBinary))
}

func TestConstantFoldingUnary(t *testing.T) {
	m := optimizeSource(t, "function f(returns integer) -(2 + 3) end function")
	fn := m.Function("f")
	lit := m.SourceNode(fn.OutPorts[0])
	require.NotNil(t, lit)
	assert.Equal(t, ir.KindLiteral, lit.Name)
	assert.Equal(t, int64(-5), lit.Value)
}

func TestAlgebraicSimplificationDropsNeutralElement(t *testing.T) {
	m := optimizeSource(t, "function f(x: integer returns integer) x + 0 end function")
	fn := m.Function("f")
	// the addition disappears; the parameter feeds the output directly
	assert.Empty(t, m.NodesNamed(ir.KindBinary))
	src := m.SourcePort(fn.OutPorts[0])
	require.NotNil(t, src)
	assert.Equal(t, "x", src.Label)
}

func TestAlgebraicSimplificationZeroAnnihilates(t *testing.T) {
	m := optimizeSource(t, "function f(x: integer returns integer) x * 0 end function")
	fn := m.Function("f")
	lit := m.SourceNode(fn.OutPorts[0])
	require.NotNil(t, lit)
	assert.Equal(t, ir.KindLiteral, lit.Name)
	assert.True(t, lit.Value == int64(0))
	assert.Empty(t, m.NodesNamed(ir.KindBinary))
}

func TestConditionalCollapseKeepsTakenBranch(t *testing.T) {
	m := optimizeSource(t, `function f(returns integer)
		if true then 1 else 2 end if
	end function`)
	fn := m.Function("f")
	assert.Empty(t, m.NodesNamed(ir.KindIf))
	lit := m.SourceNode(fn.OutPorts[0])
	require.NotNil(t, lit)
	assert.Equal(t, ir.KindLiteral, lit.Name)
	assert.Equal(t, int64(1), lit.Value)
}

func TestConditionalCollapseFalseTakesElse(t *testing.T) {
	m := optimizeSource(t, `function f(returns integer)
		if false then 1 else 2 end if
	end function`)
	fn := m.Function("f")
	assert.Empty(t, m.NodesNamed(ir.KindIf))
	lit := m.SourceNode(fn.OutPorts[0])
	require.NotNil(t, lit)
	assert.Equal(t, int64(2), lit.Value)
}

func TestLetInliningDrainsLiteralBindings(t *testing.T) {
	m := optimizeSource(t, `function f(returns integer)
		let x := 5 in x + 1 end let
	end function`)
	fn := m.Function("f")
	// the binding is a literal, the let collapses and 5+1 folds
	assert.Empty(t, m.NodesNamed(ir.KindLet))
	lit := m.SourceNode(fn.OutPorts[0])
	require.NotNil(t, lit)
	assert.Equal(t, ir.KindLiteral, lit.Name)
	assert.Equal(t, int64(6), lit.Value)
}

func TestSingleUseFunctionInlining(t *testing.T) {
	m := optimizeSource(t, `function sq(x: integer returns integer) x * x end function
		function main(a: integer returns integer) sq(a) end function`)

	// the callee is gone, the call site became a let binding x to the
	// argument whose body squares it
	assert.Nil(t, m.Function("sq"))
	assert.Empty(t, m.NodesNamed(ir.KindFunctionCall))

	main := m.Function("main")
	require.NotNil(t, main)
	lets := m.NodesNamed(ir.KindLet)
	require.Len(t, lets, 1)
	let := lets[0]
	require.NotNil(t, let.Init)
	require.NotNil(t, let.Body)
	require.Len(t, let.Init.OutPorts, 1)
	assert.Equal(t, "x", let.Init.OutPorts[0].Label)

	squares := 0
	for _, n := range let.Body.Nodes {
		if n.Name == ir.KindBinary && n.Operator == "*" {
			squares++
		}
	}
	assert.Equal(t, 1, squares)
}

func TestFunctionCalledTwiceIsNotInlined(t *testing.T) {
	m := optimizeSource(t, `function sq(x: integer returns integer) x * x end function
		function main(a: integer returns integer) sq(a) + sq(a) end function`)
	assert.NotNil(t, m.Function("sq"))
	assert.Len(t, m.NodesNamed(ir.KindFunctionCall), 2)
}

func TestDeadNodesAreRemoved(t *testing.T) {
	m := optimizeSource(t, `function f(a: integer returns integer)
		let unused := a * 2; kept := a + 1 in kept end let
	end function`)
	// the unused binding's multiplication must not survive
	for _, bin := range m.NodesNamed(ir.KindBinary) {
		assert.NotEqual(t, "*", bin.Operator)
	}
}

func TestOptimizerDisabledLeavesGraphAlone(t *testing.T) {
	scanner := lexer.NewScanner("function f(returns integer) 2 + 3 end function")
	tokens := scanner.ScanTokens()
	astModule, err := parser.NewParser(tokens).Parse()
	require.NoError(t, err)
	module, _, err := compiler.Build(astModule)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Optimizer.Enabled = false
	require.NoError(t, New(module, cfg).Optimize())
	assert.Len(t, module.NodesNamed(ir.KindBinary), 1)
}
