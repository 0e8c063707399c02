// internal/codegen/function.go
//
// Function emission and module assembly: prototypes, definitions,
// synthesized record structs, typedefs, service classes and the
// JSON-in/JSON-out main envelope.
package codegen

import (
	"fmt"
	"strings"

	"sisalc/internal/config"
	"sisalc/internal/errors"
	"sisalc/internal/ir"
)

// Emit renders the whole module as one C++ translation unit
func Emit(m *ir.Module, cfg *config.Config) (string, error) {
	e := NewEmitter(m, cfg)
	var prototypes []string
	var functions []string
	for _, fn := range m.Functions {
		proto, source, err := e.emitFunction(fn)
		if err != nil {
			return "", err
		}
		prototypes = append(prototypes, proto)
		functions = append(functions, source)
	}
	if main := m.Function("main"); main != nil {
		envelope, err := e.emitMainEnvelope(main)
		if err != nil {
			return "", err
		}
		functions = append(functions, envelope)
	}

	var typedefs []string
	for _, def := range m.Definitions {
		typedefs = append(typedefs, fmt.Sprintf("typedef %s %s;", e.tm.InternalType(def.Type), def.Name))
	}

	var includes []string
	for _, h := range e.extraHeaders {
		includes = append(includes, fmt.Sprintf("#include <%s>", h))
	}
	header := strings.Replace(moduleHeader, "$extra_headers", strings.Join(includes, "\n"), 1)

	var sb strings.Builder
	sb.WriteString(header)
	if structs := e.tm.StructSources(); len(structs) > 0 {
		sb.WriteString(strings.Join(structs, "\n\n"))
		sb.WriteString("\n\n")
	}
	if len(typedefs) > 0 {
		sb.WriteString(strings.Join(typedefs, "\n"))
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.Join(prototypes, "\n"))
	sb.WriteString("\n")
	if len(e.serviceClasses) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(e.serviceClasses, "\n\n"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Join(functions, "\n\n"))
	sb.WriteString("\n")
	return sb.String(), nil
}

// retTypeOf renders a function's return type; multiple outputs
// become a tuple
func (e *Emitter) retTypeOf(fn *ir.Node) string {
	if len(fn.OutPorts) == 1 {
		return e.tm.CppType(fn.OutPorts[0].Type)
	}
	var parts []string
	for _, p := range fn.OutPorts {
		parts = append(parts, e.tm.CppType(p.Type))
	}
	e.addHeader("tuple")
	return fmt.Sprintf("std::tuple<%s>", strings.Join(parts, ", "))
}

func (e *Emitter) emitFunction(fn *ir.Node) (string, string, error) {
	if len(fn.OutPorts) == 0 {
		return "", "", errors.Newf(errors.InternalError, fn.Location,
			"function %q has no outputs", fn.FunctionName)
	}
	// the variable namespace restarts in every function
	e.nameCounts = map[string]int{}

	var argDefs []string
	for _, p := range fn.InPorts {
		e.setValue(p, p.Label)
		e.nameCounts[p.Label]++
		argDefs = append(argDefs, fmt.Sprintf("%s %s", e.tm.CppType(p.Type), p.Label))
	}

	// name the ports producing the function's results
	for i, out := range fn.OutPorts {
		src := e.module.SourcePort(out)
		if src == nil {
			return "", "", errors.Newf(errors.InternalError, fn.Location,
				"output %d of %q is not connected", i, fn.FunctionName)
		}
		if !src.In {
			label := "function_result"
			if len(fn.OutPorts) > 1 {
				label = fmt.Sprintf("function_result%d", i)
			}
			src.Label = label
			e.renamed[src.ID] = true
		}
	}

	block := NewBlock(&e.cfg.Codegen, false, false)
	var results []string
	for _, out := range fn.OutPorts {
		value, err := e.eval(out, block)
		if err != nil {
			return "", "", err
		}
		results = append(results, value)
	}

	name := fn.FunctionName
	if name == "main" {
		name = "sisal_main"
	}
	retType := e.retTypeOf(fn)
	returnStatement := "return " + results[0] + ";"
	if len(results) > 1 {
		returnStatement = "return {" + strings.Join(results, ", ") + "};"
	}

	signature := fmt.Sprintf("%s %s(%s)", retType, name, strings.Join(argDefs, ", "))
	indent := e.cfg.Codegen.Indent
	source := signature + "\n{\n" +
		indentCpp(block.String(), 1, indent) + "\n" +
		indentCpp(returnStatement, 1, indent) + "\n}"

	if pragma := fn.GetPragma("max_time"); pragma != nil {
		e.serviceClasses = append(e.serviceClasses, e.executionManagerClass(fn, name, retType, argDefs, pragma))
	}
	return signature + ";", source, nil
}

// emitMainEnvelope wraps the user main: read each argument from the
// JSON document on stdin, check presence, dispatch, write the result
// document to stdout.
func (e *Emitter) emitMainEnvelope(main *ir.Node) (string, error) {
	indent := e.cfg.Codegen.Indent
	var body strings.Builder
	body.WriteString("Json::Value root;\n")
	body.WriteString("std::cin >> root;\n")
	body.WriteString("Json::Value json_result;\n")
	var args []string
	for _, p := range main.InPorts {
		body.WriteString(fmt.Sprintf("CHECK_INPUT_ARGUMENT(%q);\n", p.Label))
		body.WriteString(e.tm.LoadFromJSONCode(p.Type, p.Label, fmt.Sprintf("root[%q]", p.Label)))
		body.WriteString("\n")
		args = append(args, p.Label)
	}

	retType := e.retTypeOf(main)
	call := fmt.Sprintf("sisal_main(%s)", strings.Join(args, ", "))
	body.WriteString(fmt.Sprintf("%s main_result = %s;\n", retType, call))
	if len(main.OutPorts) == 1 {
		body.WriteString(e.tm.SaveToJSONCode(main.OutPorts[0].Type, `json_result["port0"]`, "main_result"))
		body.WriteString("\n")
	} else {
		for i, p := range main.OutPorts {
			body.WriteString(e.tm.SaveToJSONCode(p.Type,
				fmt.Sprintf("json_result[\"port%d\"]", i),
				fmt.Sprintf("std::get<%d>(main_result)", i)))
			body.WriteString("\n")
		}
	}
	body.WriteString("std::cout << json_result << \"\\n\";\n")
	body.WriteString("std::cout << std::endl;")

	return "int main(int argc, char **argv)\n{\n" +
		indentCpp(body.String(), 1, indent) + "\n" +
		indentCpp("return 0;", 1, indent) + "\n}", nil
}
