package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "sisalc/internal/errors"
	"sisalc/internal/lexer"
	"sisalc/internal/types"
)

func parseSource(t *testing.T, source string) (*Module, error) {
	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()
	require.False(t, scanner.HadError(), "scan errors: %v", scanner.Errors())
	return NewParser(tokens).Parse()
}

func mustParse(t *testing.T, source string) *Module {
	module, err := parseSource(t, source)
	require.NoError(t, err)
	return module
}

func TestParseSimpleFunction(t *testing.T) {
	module := mustParse(t, "function f(a, b: integer returns integer) a + b end function")
	require.Len(t, module.Functions, 1)
	fn := module.Functions[0]
	assert.Equal(t, "f", fn.Name)
	require.Len(t, fn.Args, 2)
	assert.Equal(t, "a", fn.Args[0].Name.Name)
	assert.Equal(t, types.Integer, fn.Args[0].Type.Kind)
	require.Len(t, fn.RetTypes, 1)
	require.Len(t, fn.Body.Exprs, 1)
	_, isAlgebraic := fn.Body.Exprs[0].(*Algebraic)
	assert.True(t, isAlgebraic)
}

func TestParseArrayTypeAndAccess(t *testing.T) {
	module := mustParse(t, "function g(a: array of integer returns integer) a[2] end function")
	fn := module.Functions[0]
	assert.Equal(t, types.Array, fn.Args[0].Type.Kind)
	access, ok := fn.Body.Exprs[0].(*ArrayAccess)
	require.True(t, ok)
	require.Len(t, access.Indices, 1)
}

func TestParseMultiDimensionalAccess(t *testing.T) {
	module := mustParse(t, "function g(a: array of array of integer returns integer) a[1, 2] end function")
	access := module.Functions[0].Body.Exprs[0].(*ArrayAccess)
	assert.Len(t, access.Indices, 2)
}

func TestParseIfElseifElse(t *testing.T) {
	module := mustParse(t, `function f(x: integer returns integer)
		if x < 0 then 0 elseif x > 10 then 10 else x end if
	end function`)
	cond, ok := module.Functions[0].Body.Exprs[0].(*If)
	require.True(t, ok)
	assert.Len(t, cond.Conditions, 2)
	assert.Len(t, cond.ElseIfs, 1)
	require.NotNil(t, cond.Else)
}

func TestParseLet(t *testing.T) {
	module := mustParse(t, `function f(returns integer)
		let x := 5; y := x * 2 in x + y end let
	end function`)
	let, ok := module.Functions[0].Body.Exprs[0].(*Let)
	require.True(t, ok)
	assert.Len(t, let.Init, 2)
}

func TestParseLoopWithNumericRange(t *testing.T) {
	module := mustParse(t, `function f(returns integer)
		for i in 1..10 returns sum of i end for
	end function`)
	loop, ok := module.Functions[0].Body.Exprs[0].(*Loop)
	require.True(t, ok)
	require.Len(t, loop.Ranges, 1)
	assert.Equal(t, "i", loop.Ranges[0].Name.Name)
	assert.NotNil(t, loop.Ranges[0].From)
	assert.NotNil(t, loop.Ranges[0].To)
	require.Len(t, loop.Returns, 1)
	assert.Equal(t, "sum", loop.Returns[0].Operator)
}

func TestParseLoopWithWhile(t *testing.T) {
	module := mustParse(t, `function f(returns integer)
		for initial i := 0 repeat i := old i + 1 while i < 10 returns value of i end for
	end function`)
	loop := module.Functions[0].Body.Exprs[0].(*Loop)
	require.Len(t, loop.Init, 1)
	require.Len(t, loop.Body, 1)
	require.NotNil(t, loop.Cond)
	assert.False(t, loop.Cond.Pre)
}

func TestParseReductionWithWhen(t *testing.T) {
	module := mustParse(t, `function f(a: array of integer returns array of integer)
		for x in a returns array of x when x > 0 end for
	end function`)
	loop := module.Functions[0].Body.Exprs[0].(*Loop)
	require.Len(t, loop.Returns, 1)
	assert.Equal(t, "array", loop.Returns[0].Operator)
	assert.NotNil(t, loop.Returns[0].When)
}

func TestParseRecordInitAndAccess(t *testing.T) {
	module := mustParse(t, `function f(returns integer)
		record[x: 1, y: 2].x
	end function`)
	access, ok := module.Functions[0].Body.Exprs[0].(*RecordAccess)
	require.True(t, ok)
	assert.Equal(t, "x", access.Field)
	_, isInit := access.Record.(*RecordInit)
	assert.True(t, isInit)
}

func TestParseTypeDefinition(t *testing.T) {
	module := mustParse(t, `type Ints = array of integer
		function f(a: Ints returns integer) a[1] end function`)
	require.Len(t, module.TypeDefs, 1)
	assert.Equal(t, "Ints", module.TypeDefs[0].Name)
	assert.Equal(t, types.Array, module.Functions[0].Args[0].Type.Kind)
}

func TestParsePragma(t *testing.T) {
	module := mustParse(t, `function f(x: integer returns integer)
		[:max_time(100)] f2(x)
	end function
	function f2(x: integer returns integer) x end function`)
	body := module.Functions[0].Body
	require.Len(t, body.Pragmas, 1)
	assert.Equal(t, "max_time", body.Pragmas[0].Name)
	require.Len(t, body.Pragmas[0].Args, 1)
	assert.Equal(t, int64(100), body.Pragmas[0].Args[0])
}

func TestParseEmptyBodyIsSyntaxError(t *testing.T) {
	_, err := parseSource(t, "function f(returns integer) end function")
	require.Error(t, err)
	compileErr, ok := err.(*cerrors.CompileError)
	require.True(t, ok)
	assert.Equal(t, cerrors.SyntaxError, compileErr.Type)
}

func TestParseRejectsUnknownTypeName(t *testing.T) {
	_, err := parseSource(t, "function f(a: Unknown returns integer) a end function")
	assert.Error(t, err)
}

func TestParseRejectsDuplicateTypeDefinition(t *testing.T) {
	_, err := parseSource(t, "type A = integer\ntype A = real\nfunction f(returns integer) 1 end function")
	require.Error(t, err)
	compileErr, ok := err.(*cerrors.CompileError)
	require.True(t, ok)
	assert.Equal(t, cerrors.DuplicateDefinition, compileErr.Type)
}

func TestParseUnaryAndPrecedenceSpine(t *testing.T) {
	module := mustParse(t, "function f(a: integer returns boolean) -a < 3 + 2 end function")
	alg, ok := module.Functions[0].Body.Exprs[0].(*Algebraic)
	require.True(t, ok)
	// operands and operators alternate in a flat spine
	require.Len(t, alg.Items, 5)
	_, isUnary := alg.Items[0].(*Unary)
	assert.True(t, isUnary)
	op, isOp := alg.Items[1].(*BinOp)
	require.True(t, isOp)
	assert.Equal(t, "<", op.Operator)
}
