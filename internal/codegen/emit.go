// internal/codegen/emit.go
//
// Demand-driven emission: each output port holds a materialized
// target value; asking for an input port's value pulls the producing
// node through its emit hook first, so every node is emitted at most
// once and in dependency order.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"sisalc/internal/config"
	"sisalc/internal/errors"
	"sisalc/internal/ir"
)

var operatorMap = map[string]string{
	"=":  "==",
	"~=": "!=",
}

type Emitter struct {
	module *ir.Module
	cfg    *config.Config
	tm     *TypeMapper

	values  map[uuid.UUID]string
	renamed map[uuid.UUID]bool

	nameCounts     map[string]int
	serviceClasses []string
	extraHeaders   []string
}

func NewEmitter(m *ir.Module, cfg *config.Config) *Emitter {
	return &Emitter{
		module:     m,
		cfg:        cfg,
		tm:         NewTypeMapper(&cfg.Codegen),
		values:     map[uuid.UUID]string{},
		renamed:    map[uuid.UUID]bool{},
		nameCounts: map[string]int{},
	}
}

func (e *Emitter) addHeader(name string) {
	for _, h := range e.extraHeaders {
		if h == name {
			return
		}
	}
	e.extraHeaders = append(e.extraHeaders, name)
}

// varName hands out a block-unique variable name from a stem
func (e *Emitter) varName(stem string) string {
	if stem == "" {
		stem = "var"
	}
	stem = removeSpecSymbols(stem)
	e.nameCounts[stem]++
	if e.nameCounts[stem] > 1 {
		return fmt.Sprintf("%s%d", stem, e.nameCounts[stem])
	}
	return stem
}

// labelOr prefers the port's explicit label over a kind-derived stem
func (e *Emitter) labelOr(p *ir.Port, stem string) string {
	if e.renamed[p.ID] && p.Label != "" {
		return p.Label
	}
	return stem
}

// eval resolves the value of an input (or region boundary) port,
// emitting the producing node on demand.
func (e *Emitter) eval(p *ir.Port, block *Block) (string, error) {
	if v, ok := e.values[p.ID]; ok {
		return v, nil
	}
	src := e.module.SourcePort(p)
	if src == nil {
		return "", errors.Newf(errors.InternalError, p.Location,
			"no value reaches %s", p)
	}
	if v, ok := e.values[src.ID]; ok {
		e.values[p.ID] = v
		return v, nil
	}
	node := e.module.Node(src.NodeID)
	if node == nil {
		return "", errors.Newf(errors.InternalError, p.Location,
			"port %s belongs to an unknown node", src)
	}
	if err := e.emitNode(node, block); err != nil {
		return "", err
	}
	v, ok := e.values[src.ID]
	if !ok {
		return "", errors.Newf(errors.InternalError, node.Location,
			"emitting %s (%s) produced no value", node.ID, node.Name)
	}
	e.values[p.ID] = v
	return v, nil
}

func (e *Emitter) setValue(p *ir.Port, v string) {
	e.values[p.ID] = v
}

func (e *Emitter) emitNode(n *ir.Node, block *Block) error {
	switch n.Name {
	case ir.KindLiteral:
		e.setValue(n.OutPorts[0], literalString(n.Value))
		return nil
	case ir.KindBinary:
		return e.emitBinary(n, block)
	case ir.KindUnary:
		return e.emitUnary(n, block)
	case ir.KindFunctionCall, ir.KindBuiltInCall:
		return e.emitCall(n, block)
	case ir.KindIf:
		return e.emitIf(n, block)
	case ir.KindLet:
		return e.emitLet(n, block)
	case ir.KindLoop:
		return e.emitLoop(n, block)
	case ir.KindArrayAccess:
		return e.emitArrayAccess(n, block)
	case ir.KindArrayInit:
		return e.emitArrayInit(n, block)
	case ir.KindRecordInit:
		return e.emitRecordInit(n, block)
	case ir.KindRecordAccess:
		return e.emitRecordAccess(n, block)
	case ir.KindOldValue:
		// outside a loop context the previous value degenerates to
		// the current one
		v, err := e.eval(n.InPorts[0], block)
		if err != nil {
			return err
		}
		e.setValue(n.OutPorts[0], v)
		return nil
	}
	return errors.Newf(errors.InternalError, n.Location,
		"node kind %s has no emission schema", n.Name)
}

func literalString(v interface{}) string {
	switch value := v.(type) {
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		s := strconv.FormatFloat(value, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case bool:
		if value {
			return "true"
		}
		return "false"
	case string:
		return value
	}
	return fmt.Sprintf("%v", v)
}

func (e *Emitter) emitBinary(n *ir.Node, block *Block) error {
	left, err := e.eval(n.InPorts[0], block)
	if err != nil {
		return err
	}
	right, err := e.eval(n.InPorts[1], block)
	if err != nil {
		return err
	}
	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, "bin")), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)
	operator := n.Operator
	if mapped, ok := operatorMap[operator]; ok {
		operator = mapped
	}
	block.AddCode(fmt.Sprintf("%s = %s %s %s;", result, left, operator, right))
	e.setValue(out, result.Name)
	return nil
}

func (e *Emitter) emitUnary(n *ir.Node, block *Block) error {
	operand, err := e.eval(n.InPorts[0], block)
	if err != nil {
		return err
	}
	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, "un")), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)
	block.AddCode(fmt.Sprintf("%s = %s %s;", result, n.Operator, operand))
	e.setValue(out, result.Name)
	return nil
}

func (e *Emitter) emitCall(n *ir.Node, block *Block) error {
	argValues := make([]string, 0, len(n.InPorts))
	for _, p := range n.InPorts {
		v, err := e.eval(p, block)
		if err != nil {
			return err
		}
		argValues = append(argValues, v)
	}
	args := strings.Join(argValues, ", ")

	timed := false
	if callee := e.module.Function(n.Callee); callee != nil && callee.GetPragma("max_time") != nil {
		timed = true
	}

	emitInvocation := func(result *Variable) {
		if timed {
			manager := e.varName(n.Callee + "_manager")
			block.AddCode(fmt.Sprintf("%s_execution_manager %s;", n.Callee, manager))
			block.AddCode(fmt.Sprintf("%s.run(%s);", manager, args))
			block.AddCode(fmt.Sprintf("%s = %s.retval;", result, manager))
		} else {
			block.AddCode(fmt.Sprintf("%s = %s(%s);", result, n.Callee, args))
		}
	}

	if len(n.OutPorts) > 1 {
		// multi-output callees return a tuple that is destructured
		// per output port
		e.addHeader("tuple")
		var retTypes []string
		for _, p := range n.OutPorts {
			retTypes = append(retTypes, e.tm.CppType(p.Type))
		}
		result := &Variable{
			Name: e.varName("call_result"),
			Type: fmt.Sprintf("std::tuple<%s>", strings.Join(retTypes, ", ")),
		}
		block.AddVariable(result)
		emitInvocation(result)
		for i, p := range n.OutPorts {
			value := &Variable{Name: e.varName(fmt.Sprintf("value_%d", i)), Type: e.tm.CppType(p.Type)}
			block.AddVariable(value)
			block.AddCode(fmt.Sprintf("%s = std::get<%d>(%s);", value, i, result))
			e.setValue(p, value.Name)
		}
		return nil
	}

	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, "call")), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)
	emitInvocation(result)
	e.setValue(out, result.Name)
	return nil
}

func (e *Emitter) emitArrayAccess(n *ir.Node, block *Block) error {
	array, err := e.eval(n.InPorts[0], block)
	if err != nil {
		return err
	}
	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, "element")), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)

	// a literal index folds the 1-based adjustment at compile time
	if src := e.module.SourceNode(n.InPorts[1]); src != nil && src.Name == ir.KindLiteral {
		if value, ok := src.Value.(int64); ok {
			block.AddCode(fmt.Sprintf("%s = %s[%d];", result, array, value-1))
			e.setValue(out, result.Name)
			return nil
		}
	}
	index, err := e.eval(n.InPorts[1], block)
	if err != nil {
		return err
	}
	block.AddCode(fmt.Sprintf("%s = %s[%s - 1];", result, array, index))
	e.setValue(out, result.Name)
	return nil
}

func (e *Emitter) emitArrayInit(n *ir.Node, block *Block) error {
	var items []string
	for _, p := range n.InPorts {
		v, err := e.eval(p, block)
		if err != nil {
			return err
		}
		items = append(items, v)
	}
	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, "array")), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)
	block.AddCode(fmt.Sprintf("%s = {%s};", result, strings.Join(items, ", ")))
	e.setValue(out, result.Name)
	return nil
}

func (e *Emitter) emitRecordInit(n *ir.Node, block *Block) error {
	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, "rec")), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)
	for i, p := range n.InPorts {
		v, err := e.eval(p, block)
		if err != nil {
			return err
		}
		field := p.Label
		if i < len(n.PortToNameIndex) {
			field = n.PortToNameIndex[i]
		}
		block.AddCode(fmt.Sprintf("%s.%s = %s;", result, field, v))
	}
	e.setValue(out, result.Name)
	return nil
}

func (e *Emitter) emitRecordAccess(n *ir.Node, block *Block) error {
	record, err := e.eval(n.InPorts[0], block)
	if err != nil {
		return err
	}
	out := n.OutPorts[0]
	result := &Variable{Name: e.varName(e.labelOr(out, n.Field)), Type: e.tm.CppType(out.Type)}
	block.AddVariable(result)
	block.AddCode(fmt.Sprintf("%s = %s.%s;", result, record, n.Field))
	e.setValue(out, result.Name)
	return nil
}
