package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisalc/internal/ir"
)

func TestTimeoutLiftingCreatesServiceFunction(t *testing.T) {
	m := mustBuild(t, `function heavy(x: integer returns integer) x * x end function
		function main(a: integer returns integer)
			[:max_time(100)] heavy(a)
		end function`)

	service := m.Function("service_function1_for_timed_expression")
	require.NotNil(t, service)
	require.NotNil(t, service.GetPragma("max_time"))
	require.Len(t, service.InPorts, 1)
	require.Len(t, service.OutPorts, 1)

	// the original site is now a call to the service function,
	// still tagged max_time
	main := m.Function("main")
	var siteCall *ir.Node
	for _, n := range main.Nodes {
		if n.Name == ir.KindFunctionCall {
			siteCall = n
		}
	}
	require.NotNil(t, siteCall)
	assert.Equal(t, service.FunctionName, siteCall.Callee)
	assert.NotNil(t, siteCall.GetPragma("max_time"))

	// the moved call lost its tag
	movedCalls := 0
	for _, n := range service.Nodes {
		if n.Name == ir.KindFunctionCall {
			movedCalls++
			assert.Equal(t, "heavy", n.Callee)
			assert.Nil(t, n.GetPragma("max_time"))
		}
	}
	assert.Equal(t, 1, movedCalls)

	// the lifted region stays fully wired: the service function's
	// output is fed from inside
	assert.NotNil(t, m.SourceNode(service.OutPorts[0]))
	assert.NotNil(t, m.SourceNode(main.OutPorts[0]))
}

func TestFunctionLevelPragmaIsNotLifted(t *testing.T) {
	m := mustBuild(t, `[:max_time(50)] function slow(x: integer returns integer) x end function
		function main(a: integer returns integer) slow(a) end function`)
	slow := m.Function("slow")
	require.NotNil(t, slow)
	assert.NotNil(t, slow.GetPragma("max_time"))
	assert.Nil(t, m.Function("service_function1_for_timed_expression"))
}
