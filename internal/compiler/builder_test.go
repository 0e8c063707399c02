package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "sisalc/internal/errors"
	"sisalc/internal/ir"
	"sisalc/internal/lexer"
	"sisalc/internal/parser"
	"sisalc/internal/types"
)

func buildSource(t *testing.T, source string) (*ir.Module, []cerrors.Warning, error) {
	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()
	require.False(t, scanner.HadError(), "scan errors: %v", scanner.Errors())
	astModule, err := parser.NewParser(tokens).Parse()
	require.NoError(t, err)
	return Build(astModule)
}

func mustBuild(t *testing.T, source string) *ir.Module {
	module, _, err := buildSource(t, source)
	require.NoError(t, err)
	return module
}

func errType(t *testing.T, err error) cerrors.ErrorType {
	require.Error(t, err)
	compileErr, ok := err.(*cerrors.CompileError)
	require.True(t, ok, "expected a CompileError, got %T: %v", err, err)
	return compileErr.Type
}

func TestBuildSimpleExpression(t *testing.T) {
	m := mustBuild(t, "function f(a, b: integer returns integer) a + b end function")
	fn := m.Function("f")
	require.NotNil(t, fn)
	require.Len(t, fn.InPorts, 2)
	require.Len(t, fn.OutPorts, 1)

	src := m.SourceNode(fn.OutPorts[0])
	require.NotNil(t, src)
	assert.Equal(t, ir.KindBinary, src.Name)
	assert.Equal(t, "+", src.Operator)
	assert.Equal(t, types.Integer, src.OutPorts[0].Type.Kind)
}

func TestBuildLeavesNoIdentifierNodes(t *testing.T) {
	m := mustBuild(t, `function f(a: integer returns integer)
		let x := a + 1 in if x > 0 then x else a end if end let
	end function`)
	for _, n := range m.AllNodes() {
		assert.NotEqual(t, "Identifier", n.Name)
	}
}

func TestBuildPrecedence(t *testing.T) {
	// 2+3*4 splits at the +, keeping * in the right subtree
	m := mustBuild(t, "function f(returns integer) 2 + 3 * 4 end function")
	fn := m.Function("f")
	root := m.SourceNode(fn.OutPorts[0])
	require.Equal(t, ir.KindBinary, root.Name)
	assert.Equal(t, "+", root.Operator)
	right := m.SourceNode(root.InPorts[1])
	require.NotNil(t, right)
	assert.Equal(t, "*", right.Operator)
}

func TestBuildIntegerRealWarning(t *testing.T) {
	_, warnings, err := buildSource(t, "function f(a: integer; b: real returns real) a + b end function")
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

func TestBuildComparisonYieldsBoolean(t *testing.T) {
	m := mustBuild(t, "function f(a: integer returns boolean) a < 3 end function")
	fn := m.Function("f")
	assert.Equal(t, types.Boolean, m.SourceNode(fn.OutPorts[0]).OutPorts[0].Type.Kind)
}

func TestBuildUnresolvedIdentifier(t *testing.T) {
	_, _, err := buildSource(t, "function f(returns integer) nope end function")
	assert.Equal(t, cerrors.UnresolvedIdentifier, errType(t, err))
}

func TestBuildUnknownCallee(t *testing.T) {
	_, _, err := buildSource(t, "function f(returns integer) missing(1) end function")
	assert.Equal(t, cerrors.UnknownCallee, errType(t, err))
}

func TestBuildDuplicateFunction(t *testing.T) {
	_, _, err := buildSource(t, `function f(returns integer) 1 end function
		function f(returns integer) 2 end function`)
	assert.Equal(t, cerrors.DuplicateDefinition, errType(t, err))
}

func TestBuildBuiltinCollision(t *testing.T) {
	_, _, err := buildSource(t, "function size(returns integer) 1 end function")
	assert.Equal(t, cerrors.DuplicateDefinition, errType(t, err))
}

func TestBuildCallArityMismatch(t *testing.T) {
	_, _, err := buildSource(t, `function sq(x: integer returns integer) x * x end function
		function f(returns integer) sq(1, 2) end function`)
	assert.Equal(t, cerrors.ArityMismatch, errType(t, err))
}

func TestBuildCallArityMatchesCallee(t *testing.T) {
	m := mustBuild(t, `function add(a, b: integer returns integer) a + b end function
		function f(returns integer) add(1, 2) end function
		function g(returns integer) add(3, 4) end function`)
	callee := m.Function("add")
	for _, call := range m.NodesNamed(ir.KindFunctionCall) {
		require.Len(t, call.InPorts, len(callee.InPorts))
		for i := range call.InPorts {
			assert.Equal(t, callee.InPorts[i].Type.Kind, call.InPorts[i].Type.Kind)
		}
	}
}

func TestBuildLiteralIndexBounds(t *testing.T) {
	_, _, err := buildSource(t, "function f(a: array of integer returns integer) a[0] end function")
	assert.Equal(t, cerrors.LiteralBoundsError, errType(t, err))
}

func TestBuildIndexingNonArray(t *testing.T) {
	_, _, err := buildSource(t, "function f(a: integer returns integer) a[1] end function")
	assert.Equal(t, cerrors.TypeMismatch, errType(t, err))
}

func TestBuildIfBranchTypesMustAgree(t *testing.T) {
	_, _, err := buildSource(t, `function f(a: array of integer returns integer)
		if true then 1 else a end if
	end function`)
	assert.Equal(t, cerrors.TypeMismatch, errType(t, err))
}

func TestBuildIfBranchesShareArity(t *testing.T) {
	m := mustBuild(t, `function f(x: integer returns integer)
		if x > 0 then x elseif x < 0 then -x else 0 end if
	end function`)
	ifNode := m.NodesNamed(ir.KindIf)[0]
	require.Len(t, ifNode.Branches, 3)
	for _, branch := range ifNode.Branches {
		assert.Len(t, branch.OutPorts, len(ifNode.OutPorts))
	}
	require.NotNil(t, ifNode.Condition)
	assert.Len(t, ifNode.Condition.OutPorts, 2)
	for _, p := range ifNode.Condition.OutPorts {
		assert.Equal(t, types.Boolean, p.Type.Kind)
	}
}

func TestBuildLetShadowingInInitFails(t *testing.T) {
	_, _, err := buildSource(t, `function f(returns integer)
		let x := 1; x := 2 in x end let
	end function`)
	assert.Equal(t, cerrors.DuplicateDefinition, errType(t, err))
}

func TestBuildLetBodySeesInitValues(t *testing.T) {
	m := mustBuild(t, `function f(a: integer returns integer)
		let x := a * 2 in x + 1 end let
	end function`)
	let := m.NodesNamed(ir.KindLet)[0]
	require.NotNil(t, let.Init)
	require.NotNil(t, let.Body)
	require.Len(t, let.Init.OutPorts, 1)
	assert.Equal(t, "x", let.Init.OutPorts[0].Label)
	// the body's boundary carries the init result first, the scope
	// copies last
	assert.Equal(t, "x", let.Body.InPorts[0].Label)
}

func TestBuildLoopStructure(t *testing.T) {
	m := mustBuild(t, `function f(returns integer)
		for i in 1..10 returns sum of i end for
	end function`)
	loop := m.NodesNamed(ir.KindLoop)[0]
	require.NotNil(t, loop.RangeGen)
	require.NotNil(t, loop.Returns)
	assert.Nil(t, loop.Init)
	assert.Nil(t, loop.Body)

	scatters := 0
	for _, n := range loop.RangeGen.Nodes {
		if n.Name == ir.KindScatter {
			scatters++
			require.Len(t, n.InPorts, 1)
			require.Len(t, n.OutPorts, 2)
			assert.Equal(t, types.Integer, n.OutPorts[0].Type.Kind)
			assert.Equal(t, types.Integer, n.OutPorts[1].Type.Kind)
		}
	}
	assert.Equal(t, 1, scatters)

	reductions := m.NodesNamed(ir.KindReduction)
	require.Len(t, reductions, 1)
	assert.Equal(t, "sum", reductions[0].Operator)
	// absent gate becomes an always-true literal
	gate := m.SourceNode(reductions[0].InPorts[0])
	require.NotNil(t, gate)
	assert.Equal(t, ir.KindLiteral, gate.Name)
	assert.Equal(t, true, gate.Value)
}

func TestBuildLoopReductionCountMustMatchOutputs(t *testing.T) {
	_, _, err := buildSource(t, `function f(returns integer, integer)
		for i in 1..10 returns sum of i end for
	end function`)
	assert.Equal(t, cerrors.ArityMismatch, errType(t, err))
}

func TestBuildArrayReductionType(t *testing.T) {
	m := mustBuild(t, `function f(a: array of integer returns array of integer)
		for x in a returns array of x when x > 0 end for
	end function`)
	red := m.NodesNamed(ir.KindReduction)[0]
	assert.Equal(t, "array", red.Operator)
	assert.Equal(t, types.Array, red.OutPorts[0].Type.Kind)
	assert.Equal(t, types.Integer, red.OutPorts[0].Type.Element.Kind)
}

func TestBuildIterationOverNonIterableFails(t *testing.T) {
	_, _, err := buildSource(t, `function f(a: integer returns integer)
		for x in a returns sum of x end for
	end function`)
	assert.Equal(t, cerrors.TypeMismatch, errType(t, err))
}

func TestBuildBuiltinCallAdoptsArrayType(t *testing.T) {
	m := mustBuild(t, `function f(a: array of integer returns array of integer)
		addh(a, 4)
	end function`)
	call := m.NodesNamed(ir.KindBuiltInCall)[0]
	assert.Equal(t, "addh", call.Callee)
	require.Equal(t, types.Array, call.OutPorts[0].Type.Kind)
	assert.Equal(t, types.Integer, call.OutPorts[0].Type.Element.Kind)
}

func TestBuildRecordRoundTrip(t *testing.T) {
	m := mustBuild(t, `function f(returns integer)
		record[x: 1, y: 2].y
	end function`)
	access := m.NodesNamed(ir.KindRecordAccess)[0]
	assert.Equal(t, "y", access.Field)
	init := m.NodesNamed(ir.KindRecordInit)[0]
	assert.Equal(t, []string{"x", "y"}, init.PortToNameIndex)
	assert.Equal(t, types.Record, init.OutPorts[0].Type.Kind)
}

func TestBuildUnknownPragmaFails(t *testing.T) {
	_, _, err := buildSource(t, `function f(x: integer returns integer)
		[:warp_speed(9)] x
	end function`)
	assert.Equal(t, cerrors.UnknownPragma, errType(t, err))
}

func TestBuildRecordFieldMissing(t *testing.T) {
	_, _, err := buildSource(t, `function f(returns integer)
		record[x: 1].z
	end function`)
	assert.Equal(t, cerrors.TypeMismatch, errType(t, err))
}

func TestBuildArrayInitRequiresUniformItems(t *testing.T) {
	_, _, err := buildSource(t, "function f(returns array of integer) [1, true] end function")
	assert.Equal(t, cerrors.TypeMismatch, errType(t, err))
}
