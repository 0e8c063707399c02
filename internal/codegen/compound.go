// internal/codegen/compound.go
//
// Emission schemas for the compound nodes: conditionals, lets and
// loops. Region boundary ports are bound to the enclosing values by
// position (branches, conditions) or by label (loop sub-regions).
package codegen

import (
	"fmt"
	"strings"

	"sisalc/internal/errors"
	"sisalc/internal/ir"
)

// bindZip copies the values of outer ports onto the region's
// boundary ports position by position
func (e *Emitter) bindZip(region []*ir.Port, outer []*ir.Port) {
	for i, p := range region {
		if i >= len(outer) {
			return
		}
		if v, ok := e.values[outer[i].ID]; ok {
			e.values[p.ID] = v
		}
	}
}

// bindByLabel binds a region's labeled boundary ports from a name ->
// value map
func (e *Emitter) bindByLabel(region []*ir.Port, valueOf map[string]string) {
	for _, p := range region {
		if p.Label == "" {
			continue
		}
		if v, ok := valueOf[p.Label]; ok {
			e.values[p.ID] = v
		}
	}
}

// evalInputs materializes every connected input port of a compound
// node before its interior is emitted
func (e *Emitter) evalInputs(n *ir.Node, block *Block) error {
	for _, p := range n.InPorts {
		if e.module.EdgeTo(p) == nil {
			continue
		}
		if _, err := e.eval(p, block); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitIf(n *ir.Node, block *Block) error {
	if err := e.evalInputs(n, block); err != nil {
		return err
	}

	// one result variable per output, assigned in every branch
	results := make([]*Variable, len(n.OutPorts))
	for i, out := range n.OutPorts {
		result := &Variable{Name: e.varName(e.labelOr(out, "if_result")), Type: e.tm.CppType(out.Type)}
		results[i] = result
		block.AddVariable(result)
		e.setValue(out, result.Name)
	}

	// conditions evaluate up front, one test variable per alternative
	condition := n.Condition
	e.bindZip(condition.InPorts, n.InPorts)
	var tests []string
	for _, out := range condition.OutPorts {
		value, err := e.eval(out, block)
		if err != nil {
			return err
		}
		test := &Variable{Name: e.varName("if_test"), Type: "boolean"}
		block.AddVariable(test)
		block.AddCode(fmt.Sprintf("%s = %s;", test, value))
		tests = append(tests, test.Name)
	}

	branchCode := make([]string, len(n.Branches))
	for bi, branch := range n.Branches {
		e.bindZip(branch.InPorts, n.InPorts)
		branchBlock := NewBlock(&e.cfg.Codegen, false, false)
		for i := range n.OutPorts {
			value, err := e.eval(branch.OutPorts[i], branchBlock)
			if err != nil {
				return err
			}
			branchBlock.AddCode(fmt.Sprintf("%s = %s;", results[i], value))
		}
		branchCode[bi] = branchBlock.String()
	}

	indent := e.cfg.Codegen.Indent
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("if(%s)\n{\n%s\n}", tests[0], indentCpp(branchCode[0], 1, indent)))
	for i := 1; i < len(n.Branches)-1; i++ {
		sb.WriteString(fmt.Sprintf("\nelse if(%s)\n{\n%s\n}", tests[i], indentCpp(branchCode[i], 1, indent)))
	}
	last := len(n.Branches) - 1
	sb.WriteString(fmt.Sprintf("\nelse\n{\n%s\n}", indentCpp(branchCode[last], 1, indent)))
	block.AddCode(sb.String())
	return nil
}

func (e *Emitter) emitLet(n *ir.Node, block *Block) error {
	if err := e.evalInputs(n, block); err != nil {
		return err
	}
	init := n.Init
	body := n.Body

	// the init shares the let's inputs
	e.bindZip(init.InPorts, n.InPorts)

	// each init binding becomes a named value reused by the body
	for _, out := range init.OutPorts {
		if src := e.module.SourcePort(out); src != nil && !src.In {
			src.Label = out.Label
			e.renamed[src.ID] = true
		}
		value, err := e.eval(out, block)
		if err != nil {
			return err
		}
		if bodyPort := body.InPortByLabel(out.Label); bodyPort != nil {
			e.setValue(bodyPort, value)
		}
	}

	// the body's trailing inputs are the let's own inputs
	offset := len(body.InPorts) - len(n.InPorts)
	if offset >= 0 {
		e.bindZip(body.InPorts[offset:], n.InPorts)
	}

	for i, out := range n.OutPorts {
		value, err := e.eval(body.OutPorts[i], block)
		if err != nil {
			return err
		}
		e.setValue(out, value)
	}
	return nil
}

type reductionInfo struct {
	node *ir.Node
	acc  string
}

func (e *Emitter) emitLoop(loop *ir.Node, block *Block) error {
	m := e.module
	cfg := &e.cfg.Codegen
	if loop.Returns == nil {
		return errors.Newf(errors.InternalError, loop.Location,
			"loop %s has no returns region", loop.ID)
	}

	// current value of every named loop quantity
	valueOf := map[string]string{}
	for _, p := range loop.InPorts {
		if m.EdgeTo(p) == nil {
			continue
		}
		v, err := e.eval(p, block)
		if err != nil {
			return err
		}
		if p.Label != "" {
			valueOf[p.Label] = v
		}
	}

	// regions after Init carry earlier regions' results first; their
	// trailing inputs are the loop's own inputs
	bindOwnInputs := func(region *ir.Node) {
		offset := len(region.InPorts) - len(loop.InPorts)
		if offset >= 0 {
			e.bindZip(region.InPorts[offset:], loop.InPorts)
		}
	}

	// initial bindings become mutable loop-carried variables
	if loop.Init != nil {
		e.bindByLabel(loop.Init.InPorts, valueOf)
		e.bindZip(loop.Init.InPorts, loop.InPorts)
		for _, out := range loop.Init.OutPorts {
			raw, err := e.eval(out, block)
			if err != nil {
				return err
			}
			v := &Variable{Name: e.varName(out.Label), Type: e.tm.CppType(out.Type)}
			block.AddVariable(v)
			block.AddCode(fmt.Sprintf("%s = %s;", v, raw))
			valueOf[out.Label] = v.Name
			e.setValue(out, v.Name)
		}
	}

	// accumulators, initialized per reduction operator
	var reductions []reductionInfo
	allAssociative := true
	for i, outPort := range loop.Returns.OutPorts {
		red := m.SourceNode(outPort)
		if red == nil || red.Name != ir.KindReduction {
			return errors.Newf(errors.InternalError, loop.Location,
				"returns output %d is not driven by a reduction", i)
		}
		acc := &Variable{
			Name: e.varName(e.labelOr(loop.OutPorts[i], "reduction")),
			Type: e.tm.CppType(loop.OutPorts[i].Type),
		}
		block.AddVariable(acc)
		switch red.Operator {
		case "sum":
			block.AddCode(fmt.Sprintf("%s = 0;", acc))
		case "product":
			block.AddCode(fmt.Sprintf("%s = 1;", acc))
		default:
			allAssociative = false
		}
		reductions = append(reductions, reductionInfo{node: red, acc: acc.Name})
		e.setValue(loop.OutPorts[i], acc.Name)
		e.setValue(outPort, acc.Name)
	}

	// iteration axes
	var forLines []string
	var preBody []string
	if loop.RangeGen != nil {
		e.bindByLabel(loop.RangeGen.InPorts, valueOf)
		e.bindZip(loop.RangeGen.InPorts, loop.InPorts)
		for _, scatter := range loop.RangeGen.Nodes {
			if scatter.Name != ir.KindScatter {
				continue
			}
			lines, pre, err := e.emitScatter(loop.RangeGen, scatter, block, valueOf)
			if err != nil {
				return err
			}
			forLines = append(forLines, lines)
			preBody = append(preBody, pre...)
		}
	}

	bodyBlock := NewBlock(cfg, false, false)
	for _, line := range preBody {
		bodyBlock.AddHeadCode(line)
	}

	// precondition break sits at the head of the body
	pre := loop.Condition != nil && loop.Condition.Name == ir.KindPreCondition
	post := loop.Condition != nil && loop.Condition.Name == ir.KindPostCondition
	if pre {
		e.bindByLabel(loop.Condition.InPorts, valueOf)
		bindOwnInputs(loop.Condition)
		condBlock := NewBlock(cfg, false, false)
		test, err := e.eval(loop.Condition.OutPorts[0], condBlock)
		if err != nil {
			return err
		}
		if rendered := condBlock.String(); rendered != "" {
			bodyBlock.AddHeadCode(rendered)
		}
		bodyBlock.AddHeadCode(fmt.Sprintf("if (!(%s)) break;", test))
	}

	// old-value snapshots are taken at the top of the body, before
	// this iteration's definitions update anything
	if err := e.emitOldValueSnapshots(loop, block, bodyBlock, valueOf); err != nil {
		return err
	}

	// per-iteration definitions
	if loop.Body != nil {
		e.bindByLabel(loop.Body.InPorts, valueOf)
		bindOwnInputs(loop.Body)
		for _, out := range loop.Body.OutPorts {
			raw, err := e.eval(out, bodyBlock)
			if err != nil {
				return err
			}
			if existing, ok := valueOf[out.Label]; ok {
				bodyBlock.AddCode(fmt.Sprintf("%s = %s;", existing, raw))
				e.setValue(out, existing)
			} else {
				v := &Variable{Name: e.varName(out.Label), Type: e.tm.CppType(out.Type)}
				bodyBlock.AddVariable(v)
				bodyBlock.AddCode(fmt.Sprintf("%s = %s;", v, raw))
				valueOf[out.Label] = v.Name
				e.setValue(out, v.Name)
			}
		}
	}

	// gated accumulator updates
	e.bindByLabel(loop.Returns.InPorts, valueOf)
	bindOwnInputs(loop.Returns)
	for _, r := range reductions {
		gate, err := e.eval(r.node.InPorts[0], bodyBlock)
		if err != nil {
			return err
		}
		value, err := e.eval(r.node.InPorts[1], bodyBlock)
		if err != nil {
			return err
		}
		var update string
		switch r.node.Operator {
		case "sum":
			update = fmt.Sprintf("%s += %s;", r.acc, value)
		case "product":
			update = fmt.Sprintf("%s *= %s;", r.acc, value)
		case "array":
			update = fmt.Sprintf("%s.push_back(%s);", r.acc, value)
		default: // value
			update = fmt.Sprintf("%s = %s;", r.acc, value)
		}
		if gate == "true" {
			bodyBlock.AddCode(update)
		} else {
			bodyBlock.AddCode(fmt.Sprintf("if (%s)\n{\n%s\n}", gate, indentCpp(update, 1, cfg.Indent)))
		}
	}

	// postcondition break closes the body
	if post {
		e.bindByLabel(loop.Condition.InPorts, valueOf)
		bindOwnInputs(loop.Condition)
		condBlock := NewBlock(cfg, false, false)
		test, err := e.eval(loop.Condition.OutPorts[0], condBlock)
		if err != nil {
			return err
		}
		if rendered := condBlock.String(); rendered != "" {
			bodyBlock.AddTailCode(rendered)
		}
		bodyBlock.AddTailCode(fmt.Sprintf("if (!(%s)) break;", test))
	}

	// assemble the loop text, innermost body first
	content := bodyBlock.String()
	if len(forLines) == 0 {
		content = "while (1)\n{\n" + indentCpp(content, 1, cfg.Indent) + "\n}"
	} else {
		for i := len(forLines) - 1; i >= 0; i-- {
			content = forLines[i] + "\n{\n" + indentCpp(content, 1, cfg.Indent) + "\n}"
		}
		// associative-only loops are safe to run as a parallel
		// reduction
		if allAssociative && loop.Condition == nil && len(reductions) > 0 {
			var clauses []string
			for _, r := range reductions {
				op := "+"
				if r.node.Operator == "product" {
					op = "*"
				}
				clauses = append(clauses, fmt.Sprintf("reduction(%s:%s)", op, r.acc))
			}
			content = "#pragma omp parallel for " + strings.Join(clauses, " ") + "\n" + content
		}
	}
	block.AddCode(content)
	return nil
}

// emitScatter renders one iteration axis: a counted for over a
// numeric range, or a range-based iteration over an array value.
func (e *Emitter) emitScatter(rangeGen, scatter *ir.Node, block *Block, valueOf map[string]string) (string, []string, error) {
	m := e.module

	// the scatter's outputs land on the range generator's labeled
	// value and index ports
	var valuePort, indexPort *ir.Port
	if edges := m.EdgesFrom(scatter.OutPorts[0]); len(edges) > 0 {
		valuePort = edges[0].To
	}
	if edges := m.EdgesFrom(scatter.OutPorts[1]); len(edges) > 0 {
		indexPort = edges[0].To
	}
	if valuePort == nil || indexPort == nil {
		return "", nil, errors.Newf(errors.InternalError, scatter.Location,
			"scatter %s is not wired to its range generator", scatter.ID)
	}

	var pre []string
	source := m.SourceNode(scatter.InPorts[0])
	if source != nil && source.Name == ir.KindRangeNumeric {
		left, err := e.eval(source.InPorts[0], block)
		if err != nil {
			return "", nil, err
		}
		right, err := e.eval(source.InPorts[1], block)
		if err != nil {
			return "", nil, err
		}
		loopVar := e.varName(valuePort.Label)
		indexVar := e.varName(indexPort.Label)
		line := fmt.Sprintf("for (integer %s = %s; %s <= %s; ++%s)", loopVar, left, loopVar, right, loopVar)
		pre = append(pre, fmt.Sprintf("integer %s = %s - (%s) + 1;", indexVar, loopVar, left))
		valueOf[valuePort.Label] = loopVar
		valueOf[indexPort.Label] = indexVar
		e.setValue(valuePort, loopVar)
		e.setValue(indexPort, indexVar)
		e.setValue(scatter.OutPorts[0], loopVar)
		e.setValue(scatter.OutPorts[1], indexVar)
		return line, pre, nil
	}

	array, err := e.eval(scatter.InPorts[0], block)
	if err != nil {
		return "", nil, err
	}
	counter := e.varName(valuePort.Label + "_at")
	elemVar := e.varName(valuePort.Label)
	indexVar := e.varName(indexPort.Label)
	line := fmt.Sprintf("for (unsigned int %s = 0; %s < size(%s); ++%s)", counter, counter, array, counter)
	pre = append(pre,
		fmt.Sprintf("%s %s = %s[%s];", e.tm.CppType(scatter.OutPorts[0].Type), elemVar, array, counter),
		fmt.Sprintf("integer %s = %s + 1;", indexVar, counter))
	valueOf[valuePort.Label] = elemVar
	valueOf[indexPort.Label] = indexVar
	e.setValue(valuePort, elemVar)
	e.setValue(indexPort, indexVar)
	e.setValue(scatter.OutPorts[0], elemVar)
	e.setValue(scatter.OutPorts[1], indexVar)
	return line, pre, nil
}

// emitOldValueSnapshots materializes every "old x" of the loop as a
// snapshot variable refreshed at the top of each iteration
func (e *Emitter) emitOldValueSnapshots(loop *ir.Node, block, bodyBlock *Block, valueOf map[string]string) error {
	regions := []*ir.Node{loop.Body, loop.Condition, loop.Returns}
	for _, region := range regions {
		if region == nil {
			continue
		}
		for _, n := range region.Nodes {
			if n.Name != ir.KindOldValue {
				continue
			}
			src := e.module.SourcePort(n.InPorts[0])
			if src == nil || src.Label == "" {
				continue
			}
			current, ok := valueOf[src.Label]
			if !ok {
				continue
			}
			snapshot := &Variable{Name: e.varName(src.Label + "_old"), Type: e.tm.CppType(n.OutPorts[0].Type)}
			block.AddVariable(snapshot)
			bodyBlock.AddHeadCode(fmt.Sprintf("%s = %s;", snapshot, current))
			e.setValue(n.InPorts[0], current)
			e.setValue(n.OutPorts[0], snapshot.Name)
		}
	}
	return nil
}
