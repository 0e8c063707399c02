package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisalc/internal/compiler"
	"sisalc/internal/config"
	"sisalc/internal/lexer"
	"sisalc/internal/optimizer"
	"sisalc/internal/parser"
)

func emitSource(t *testing.T, source string, optimize bool) string {
	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()
	require.False(t, scanner.HadError(), "scan errors: %v", scanner.Errors())
	astModule, err := parser.NewParser(tokens).Parse()
	require.NoError(t, err)
	module, _, err := compiler.Build(astModule)
	require.NoError(t, err)
	cfg := config.Default()
	if optimize {
		require.NoError(t, optimizer.New(module, cfg).Optimize())
	}
	cpp, err := Emit(module, cfg)
	require.NoError(t, err)
	return cpp
}

func TestEmitPrelude(t *testing.T) {
	cpp := emitSource(t, "function main(a: integer returns integer) a end function", false)
	assert.Contains(t, cpp, "#include <json/json.h>")
	assert.Contains(t, cpp, "#define Array std::vector")
	assert.Contains(t, cpp, "CHECK_INPUT_ARGUMENT")
	assert.Contains(t, cpp, "inline Array<I> addh")
}

func TestEmitMainEnvelope(t *testing.T) {
	cpp := emitSource(t, "function main(a: integer returns integer) a end function", false)
	// the user main is renamed and wrapped in a JSON envelope
	assert.Contains(t, cpp, "integer sisal_main(integer a)")
	assert.Contains(t, cpp, "int main(int argc, char **argv)")
	assert.Contains(t, cpp, `CHECK_INPUT_ARGUMENT("a");`)
	assert.Contains(t, cpp, `integer a = root["a"].asInt();`)
	assert.Contains(t, cpp, `json_result["port0"]`)
}

func TestEmitBinaryOperatorMapping(t *testing.T) {
	cpp := emitSource(t, "function main(a, b: integer returns boolean) a = b end function", false)
	assert.Contains(t, cpp, "a == b")

	cpp = emitSource(t, "function main(a, b: integer returns boolean) a ~= b end function", false)
	assert.Contains(t, cpp, "a != b")
}

func TestEmitArrayAccessFoldsLiteralIndex(t *testing.T) {
	cpp := emitSource(t, "function main(a: array of integer returns integer) a[2] end function", false)
	// 1-based source index 2 becomes 0-based 1
	assert.Contains(t, cpp, "a[1];")
}

func TestEmitArrayAccessAdjustsDynamicIndex(t *testing.T) {
	cpp := emitSource(t, "function main(a: array of integer; i: integer returns integer) a[i] end function", false)
	assert.Contains(t, cpp, "a[i - 1];")
}

func TestEmitIf(t *testing.T) {
	cpp := emitSource(t, `function main(x: integer returns integer)
		if x > 0 then x else 0 end if
	end function`, false)
	assert.Contains(t, cpp, "if(")
	assert.Contains(t, cpp, "else")
	assert.Contains(t, cpp, "function_result")
}

func TestEmitLoopSum(t *testing.T) {
	cpp := emitSource(t, `function main(returns integer)
		for i in 1..10 returns sum of i end for
	end function`, false)
	assert.Contains(t, cpp, "for (integer i = 1; i <= 10; ++i)")
	assert.Contains(t, cpp, "function_result = 0;")
	assert.Contains(t, cpp, "function_result += i;")
	// associative reductions get the parallel annotation
	assert.Contains(t, cpp, "#pragma omp parallel for reduction(+:function_result)")
}

func TestEmitLoopOverArrayWithGate(t *testing.T) {
	cpp := emitSource(t, `function main(a: array of integer returns array of integer)
		for x in a returns array of x when x > 0 end for
	end function`, false)
	assert.Contains(t, cpp, "size(a)")
	assert.Contains(t, cpp, ".push_back(x);")
	assert.Contains(t, cpp, "if (")
	// a gated array reduction must not be annotated parallel
	assert.NotContains(t, cpp, "#pragma omp parallel for")
}

func TestEmitWhileLoop(t *testing.T) {
	cpp := emitSource(t, `function main(returns integer)
		for initial i := 0 repeat i := old i + 1 while i < 10 returns value of i end for
	end function`, false)
	assert.Contains(t, cpp, "while (1)")
	assert.Contains(t, cpp, "break;")
	assert.Contains(t, cpp, "i_old")
}

func TestEmitRecordStructDeduplication(t *testing.T) {
	cpp := emitSource(t, `function main(returns integer)
		record[x: 1, y: 2].x + record[x: 3, y: 4].y
	end function`, false)
	// both record shapes collapse into one synthesized struct
	assert.Contains(t, cpp, "struct record0")
	assert.NotContains(t, cpp, "struct record1")
}

func TestEmitTypedefForNamedTypes(t *testing.T) {
	cpp := emitSource(t, `type Ints = array of integer
		function main(a: Ints returns integer) a[1] end function`, false)
	assert.Contains(t, cpp, "typedef Array<integer> Ints;")
	assert.Contains(t, cpp, "Ints a")
}

func TestEmitTimeoutManager(t *testing.T) {
	cpp := emitSource(t, `function heavy(x: integer returns integer) x * x end function
		function main(a: integer returns integer)
			[:max_time(100)] heavy(a)
		end function`, false)
	assert.Contains(t, cpp, "class service_function1_for_timed_expression_execution_manager")
	assert.Contains(t, cpp, "std::chrono::milliseconds(100)")
	assert.Contains(t, cpp, ".retval;")
	assert.Contains(t, cpp, "#include <thread>")
}

func TestEmitOptimizedConstantProgram(t *testing.T) {
	cpp := emitSource(t, "function main(returns integer) 2 + 3 * 4 end function", true)
	assert.Contains(t, cpp, "return 14;")
}

func TestEmitPrototypes(t *testing.T) {
	cpp := emitSource(t, `function helper(x: integer returns integer) x + 1 end function
		function main(a: integer returns integer) helper(a) end function`, false)
	assert.Contains(t, cpp, "integer helper(integer x);")
	assert.Contains(t, cpp, "integer sisal_main(integer a);")
}

func TestEmitGroupedVariableDeclarations(t *testing.T) {
	cpp := emitSource(t, `function main(a, b: integer returns integer)
		a * b + a * a + b * b
	end function`, false)
	// several integer temporaries share one declaration line
	assert.Contains(t, cpp, "integer bin, bin2")
}
