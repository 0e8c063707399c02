// internal/codegen/timeout.go
//
// The execution-manager template generated per max_time-tagged
// function: a worker thread runs the function while the caller waits
// up to the deadline and reads retval (or the timed_out flag) back.
package codegen

import (
	"fmt"
	"strings"

	"sisalc/internal/ir"
)

func pragmaMilliseconds(pragma *ir.Pragma) int64 {
	if pragma == nil || len(pragma.Args) == 0 {
		return 0
	}
	switch value := pragma.Args[0].(type) {
	case int64:
		return value
	case float64:
		return int64(value)
	}
	return 0
}

func (e *Emitter) executionManagerClass(fn *ir.Node, cppName, retType string, argDefs []string, pragma *ir.Pragma) string {
	e.addHeader("thread")
	e.addHeader("chrono")
	e.addHeader("mutex")
	e.addHeader("condition_variable")

	var argNames []string
	for _, p := range fn.InPorts {
		argNames = append(argNames, p.Label)
	}
	milliseconds := pragmaMilliseconds(pragma)
	indent := e.cfg.Codegen.Indent

	runBody := fmt.Sprintf(`std::mutex lock;
std::condition_variable finished_cv;
bool finished = false;
std::thread worker([&]() {
%s%s result = %s(%s);
%sstd::unique_lock<std::mutex> guard(lock);
%sretval = result;
%sfinished = true;
%sfinished_cv.notify_one();
});
std::unique_lock<std::mutex> guard(lock);
timed_out = !finished_cv.wait_for(guard, std::chrono::milliseconds(%d), [&] { return finished; });
if (timed_out)
{
%sworker.detach();
}
else
{
%sworker.join();
}`,
		indent, retType, cppName, strings.Join(argNames, ", "),
		indent, indent, indent, indent,
		milliseconds, indent, indent)

	class := fmt.Sprintf(`class %s_execution_manager
{
public:
%s%s retval;
%sbool timed_out;
%svoid run(%s)
%s{
%s
%s}
};`,
		fn.FunctionName,
		indent, retType,
		indent,
		indent, strings.Join(argDefs, ", "),
		indent,
		indentCpp(runBody, 2, indent),
		indent)
	return class
}
