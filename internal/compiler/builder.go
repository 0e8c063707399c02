// internal/compiler/builder.go
//
// The builder lowers the parsed AST into the typed dataflow IR in a
// single post-order traversal. Each expression builds into a set of
// target ports supplied by its parent; types are established by the
// edges as they are created.
package compiler

import (
	"fmt"

	"sisalc/internal/errors"
	"sisalc/internal/ir"
	"sisalc/internal/parser"
	"sisalc/internal/types"
)

// Builder holds the per-compilation state of the AST -> IR pass
type Builder struct {
	module       *ir.Module
	builtins     map[string]*Builtin
	pragmaGroups int
}

// Build lowers a parsed module into IR. On success the returned
// module contains one Lambda per source function, with every
// identifier resolved to a port reference.
func Build(astModule *parser.Module) (*ir.Module, []errors.Warning, error) {
	b := &Builder{
		module:   ir.NewModule(),
		builtins: newBuiltins(),
	}
	for _, def := range astModule.TypeDefs {
		b.module.AddDefinition(def.Name, def.Type)
	}
	for _, fn := range astModule.Functions {
		if err := b.declareFunction(fn); err != nil {
			return nil, nil, err
		}
	}
	for _, fn := range astModule.Functions {
		if err := b.buildFunction(fn); err != nil {
			return nil, nil, err
		}
	}
	if err := b.liftTimeouts(); err != nil {
		return nil, nil, err
	}
	return b.module, b.module.Warnings.All(), nil
}

func (b *Builder) declareFunction(fn *parser.Function) error {
	if b.module.Function(fn.Name) != nil || b.builtins[fn.Name] != nil {
		return errors.Newf(errors.DuplicateDefinition, fn.Location,
			"function named %q is already defined or is a built-in", fn.Name)
	}
	pragmas, err := b.checkPragmas(fn.Pragmas, fn.Location)
	if err != nil {
		return err
	}
	node := b.module.NewNode(ir.KindFunction, fn.Location)
	node.FunctionName = fn.Name
	node.Pragmas = pragmas
	for _, arg := range fn.Args {
		node.AddInPort(arg.Type, arg.Name.Name, arg.Name.Location)
	}
	for _, ret := range fn.RetTypes {
		node.AddOutPort(ret, "", ret.Location)
	}
	b.module.AddFunction(node)
	return nil
}

func (b *Builder) buildFunction(fn *parser.Function) error {
	node := b.module.Function(fn.Name)
	scope := NewScope(node)
	_, err := b.buildExpr(fn.Body, node.OutPorts, scope, node)
	return err
}

// checkPragmas validates pragma names against the recognized set
func (b *Builder) checkPragmas(pragmas []parser.Pragma, location string) ([]ir.Pragma, error) {
	var result []ir.Pragma
	for _, p := range pragmas {
		if p.Name != "max_time" {
			return nil, errors.Newf(errors.UnknownPragma, location,
				"unknown pragma %q", p.Name)
		}
		result = append(result, ir.Pragma{Name: p.Name, Args: p.Args})
	}
	return result, nil
}

// numOut returns the declared output arity of an expression
func (b *Builder) numOut(e parser.Expr) (int, error) {
	switch n := e.(type) {
	case *parser.MultiExp:
		total := 0
		for _, sub := range n.Exprs {
			count, err := b.numOut(sub)
			if err != nil {
				return 0, err
			}
			total += count
		}
		return total, nil
	case *parser.If:
		return b.numOut(n.Then)
	case *parser.Let:
		return b.numOut(n.Body)
	case *parser.Loop:
		return len(n.Returns), nil
	case *parser.Call:
		callee := b.module.Function(n.Name)
		if callee != nil {
			return len(callee.OutPorts), nil
		}
		if builtin := b.builtins[n.Name]; builtin != nil {
			return len(builtin.Results), nil
		}
		return 0, errors.Newf(errors.UnknownCallee, n.Location,
			"no function named %q", n.Name)
	}
	return 1, nil
}

// checkArity verifies the caller supplied as many target ports as the
// expression produces values
func (b *Builder) checkArity(e parser.Expr, targets []*ir.Port) error {
	expected, err := b.numOut(e)
	if err != nil {
		return err
	}
	if len(targets) != expected {
		return errors.Newf(errors.ArityMismatch, e.Loc(),
			"%d value(s) expected, got %d", len(targets), expected)
	}
	return nil
}

func (b *Builder) buildExpr(e parser.Expr, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	if err := b.checkArity(e, targets); err != nil {
		return nil, err
	}
	switch n := e.(type) {
	case *parser.MultiExp:
		return b.buildMulti(n, targets, scope, region)
	case *parser.Literal:
		return b.buildLiteral(n, targets, scope, region)
	case *parser.Identifier:
		return b.buildIdentifier(n, targets, scope, region)
	case *parser.Algebraic:
		return b.buildAlgebraic(n.Items, targets, scope, region)
	case *parser.Unary:
		return b.buildUnary(n, targets, scope, region)
	case *parser.Call:
		return b.buildCall(n, targets, scope, region)
	case *parser.If:
		return b.buildIf(n, targets, scope, region)
	case *parser.Let:
		return b.buildLet(n, targets, scope, region)
	case *parser.Loop:
		return b.buildLoop(n, targets, scope, region)
	case *parser.ArrayAccess:
		return b.buildArrayAccess(n, targets, scope, region)
	case *parser.ArrayInit:
		return b.buildArrayInit(n, targets, scope, region)
	case *parser.RecordInit:
		return b.buildRecordInit(n, targets, scope, region)
	case *parser.RecordAccess:
		return b.buildRecordAccess(n, targets, scope, region)
	case *parser.OldValue:
		return b.buildOldValue(n, targets, scope, region)
	}
	return nil, errors.Newf(errors.InternalError, e.Loc(),
		"unhandled expression node %T", e)
}

// buildMulti distributes target ports over the contained expressions
// and assigns pragma groups when the expression list is annotated
func (b *Builder) buildMulti(n *parser.MultiExp, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	pragmas, err := b.checkPragmas(n.Pragmas, n.Location)
	if err != nil {
		return nil, err
	}
	group := 0
	if len(pragmas) > 0 {
		b.pragmaGroups++
		group = b.pragmaGroups
	}
	result := &SubIR{}
	index := 0
	for _, e := range n.Exprs {
		count, err := b.numOut(e)
		if err != nil {
			return nil, err
		}
		sub, err := b.buildExpr(e, targets[index:index+count], scope, region)
		if err != nil {
			return nil, err
		}
		if len(pragmas) > 0 {
			// the pragma lands on the canonical root node of the
			// expression: the producer of each output edge
			for _, edge := range sub.OutputEdges {
				root := b.module.Node(edge.From.NodeID)
				if root != nil && sub.Contains(root) {
					root.Pragmas = pragmas
					root.PragmaGroup = group
				}
			}
		}
		result.Add(sub)
		index += count
	}
	return result, nil
}

func (b *Builder) buildLiteral(n *parser.Literal, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindLiteral, n.Location)
	node.Value = n.Value
	out := node.AddOutPort(n.Type.Copy(n.Location), "value", n.Location)
	edge, err := b.module.Connect(out, targets[0], region)
	if err != nil {
		return nil, err
	}
	return &SubIR{Nodes: []*ir.Node{node}, OutputEdges: []*ir.Edge{edge}}, nil
}

func (b *Builder) buildIdentifier(n *parser.Identifier, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	port := scope.Resolve(n.Name)
	if port == nil {
		return nil, errors.Newf(errors.UnresolvedIdentifier, n.Location,
			"identifier %q was not defined", n.Name)
	}
	edge, err := b.module.Connect(port, targets[0], region)
	if err != nil {
		return nil, err
	}
	return &SubIR{OutputEdges: []*ir.Edge{edge}}, nil
}

// precedence groups, loosest binding first; the algebraic spine is
// split right-to-left at the loosest operator present
var precedenceGroups = [][]string{
	{"&", "|"},
	{"<", ">", ">=", "<=", "=", "~="},
	{"+", "-"},
	{"*", "/"},
	{"**"},
}

func operatorInGroup(op string, group []string) bool {
	for _, candidate := range group {
		if candidate == op {
			return true
		}
	}
	return false
}

func (b *Builder) buildAlgebraic(items []interface{}, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	if len(items) == 1 {
		e, ok := items[0].(parser.Expr)
		if !ok {
			return nil, errors.New(errors.InternalError, "malformed algebraic spine", "")
		}
		return b.buildExpr(e, targets, scope, region)
	}
	for _, group := range precedenceGroups {
		// operators sit at odd positions; scan right-to-left so the
		// split keeps left associativity for - and /
		for i := len(items) - 2; i >= 1; i -= 2 {
			op, ok := items[i].(*parser.BinOp)
			if !ok || !operatorInGroup(op.Operator, group) {
				continue
			}
			bin := b.module.NewNodeIn(region, ir.KindBinary, op.Location)
			bin.Operator = op.Operator
			left := bin.AddInPort(nil, "left", op.Location)
			right := bin.AddInPort(nil, "right", op.Location)

			leftSub, err := b.buildAlgebraic(items[:i], []*ir.Port{left}, scope, region)
			if err != nil {
				return nil, err
			}
			rightSub, err := b.buildAlgebraic(items[i+1:], []*ir.Port{right}, scope, region)
			if err != nil {
				return nil, err
			}
			resultType, err := binaryResultType(bin, op.Operator, op.Location)
			if err != nil {
				return nil, err
			}
			// mixing integer and real operands is legal but lossy
			if l, r := bin.InPorts[0].Type, bin.InPorts[1].Type; l.IsNumeric() && r.IsNumeric() && l.Kind != r.Kind {
				b.module.Warnings.Add(fmt.Sprintf("%s and %s combination: possible loss of data", l, r), op.Location)
			}
			out := bin.AddOutPort(resultType, fmt.Sprintf("binary output (%s)", op.Operator), op.Location)
			edge, err := b.module.Connect(out, targets[0], region)
			if err != nil {
				return nil, err
			}
			result := &SubIR{Nodes: []*ir.Node{bin}, OutputEdges: []*ir.Edge{edge}}
			return leftSub.Add(rightSub).Add(result), nil
		}
	}
	return nil, errors.New(errors.InternalError, "algebraic spine without operators", "")
}

// binaryResultType applies the operator typing rule once both input
// ports have been established by their edges
func binaryResultType(bin *ir.Node, operator string, location string) (*types.Type, error) {
	switch operator {
	case "<", ">", ">=", "<=", "=", "~=", "&", "|":
		return types.NewBoolean(location), nil
	}
	left := bin.InPorts[0].Type
	right := bin.InPorts[1].Type
	switch {
	case left == nil || right == nil:
		return nil, errors.Newf(errors.InternalError, location,
			"operand types not established for %q", operator)
	case left.Kind == types.Integer && right.Kind == types.Integer:
		return types.NewInteger(location), nil
	case left.IsNumeric() && right.IsNumeric():
		return types.NewReal(location), nil
	case left.IsArray() && right.IsArray() && types.Equal(left, right):
		return left.Copy(location), nil
	}
	return nil, errors.Newf(errors.TypeMismatch, location,
		"operation %s between %s and %s not implemented", operator, left, right)
}

func (b *Builder) buildUnary(n *parser.Unary, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindUnary, n.Location)
	node.Operator = n.Operator
	in := node.AddInPort(nil, fmt.Sprintf("unary (%s) input", n.Operator), n.Location)
	valueSub, err := b.buildExpr(n.Value, []*ir.Port{in}, scope, region)
	if err != nil {
		return nil, err
	}
	var outType *types.Type
	if in.Type != nil {
		outType = in.Type.Copy(n.Location)
	}
	out := node.AddOutPort(outType, fmt.Sprintf("unary (%s) output", n.Operator), n.Location)
	edge, err := b.module.Connect(out, targets[0], region)
	if err != nil {
		return nil, err
	}
	return valueSub.Add(&SubIR{Nodes: []*ir.Node{node}, OutputEdges: []*ir.Edge{edge}}), nil
}

func (b *Builder) buildCall(n *parser.Call, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindFunctionCall, n.Location)
	node.Callee = n.Name

	builtin := b.builtins[n.Name]
	if callee := b.module.Function(n.Name); callee != nil {
		node.CopyInPortsFrom(callee)
		node.CopyOutPortsFrom(callee)
	} else if builtin != nil {
		node.Name = ir.KindBuiltInCall
		for _, p := range builtin.Params {
			node.AddInPort(p.Type.Copy(n.Location), p.Label, n.Location)
		}
		for _, r := range builtin.Results {
			node.AddOutPort(r.Type.Copy(n.Location), r.Label, n.Location)
		}
	} else {
		return nil, errors.Newf(errors.UnknownCallee, n.Location,
			"no function named %q", n.Name)
	}

	total := 0
	for _, arg := range n.Args {
		count, err := b.numOut(arg)
		if err != nil {
			return nil, err
		}
		total += count
	}
	if total != len(node.InPorts) {
		return nil, errors.Newf(errors.ArityMismatch, n.Location,
			"call to %q expects %d argument value(s), got %d", n.Name, len(node.InPorts), total)
	}

	result := &SubIR{Nodes: []*ir.Node{node}}
	index := 0
	for _, arg := range n.Args {
		count, _ := b.numOut(arg)
		for k := 0; k < count; k++ {
			node.InPorts[index+k].Location = arg.Loc()
		}
		sub, err := b.buildExpr(arg, node.InPorts[index:index+count], scope, region)
		if err != nil {
			return nil, err
		}
		result.Add(sub)
		index += count
	}

	if builtin != nil && builtin.SetupResult != nil {
		builtin.SetupResult(node)
	}
	for i, out := range node.OutPorts {
		edge, err := b.module.Connect(out, targets[i], region)
		if err != nil {
			return nil, err
		}
		result.OutputEdges = append(result.OutputEdges, edge)
	}
	return result, nil
}

// connectCompound wires an If, Let or Loop into its surroundings:
// the node mirrors the enclosing scope's inputs and the caller's
// expected outputs, and the scope's values flow in over explicit
// edges.
func (b *Builder) connectCompound(node *ir.Node, targets []*ir.Port, scope *Scope, region *ir.Node) error {
	node.CopyInPortsFrom(scope.Node())
	node.CopyOutPortsFromTargets(targets)
	for i, scopePort := range scope.Node().InPorts {
		if _, err := b.module.Connect(scopePort, node.InPorts[i], region); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) connectOutputs(node *ir.Node, targets []*ir.Port, region *ir.Node, sub *SubIR) error {
	for i, out := range node.OutPorts {
		edge, err := b.module.Connect(out, targets[i], region)
		if err != nil {
			return err
		}
		sub.OutputEdges = append(sub.OutputEdges, edge)
	}
	return nil
}

func (b *Builder) buildIf(n *parser.If, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	ifNode := b.module.NewNodeIn(region, ir.KindIf, n.Location)
	if err := b.connectCompound(ifNode, targets, scope, region); err != nil {
		return nil, err
	}

	// all branches must expose the same number of output ports
	bodies := append([]*parser.MultiExp{n.Then}, n.ElseIfs...)
	bodies = append(bodies, n.Else)
	for _, body := range bodies {
		count, err := b.numOut(body)
		if err != nil {
			return nil, err
		}
		if count != len(targets) {
			return nil, errors.Newf(errors.ArityMismatch, n.Location,
				"number of output ports should be equal in all branches of an 'if'")
		}
	}

	condition := b.module.NewNode(ir.KindCondition, n.Location)
	ifNode.Condition = condition
	condition.CopyInPortsFrom(ifNode)
	for i := range n.Conditions {
		condition.AddOutPort(types.NewBoolean(n.Conditions[i].Loc()), fmt.Sprintf("cond #%d", i), n.Conditions[i].Loc())
	}
	conditionScope := NewScope(condition)
	for i, cond := range n.Conditions {
		if _, err := b.buildExpr(cond, []*ir.Port{condition.OutPorts[i]}, conditionScope, condition); err != nil {
			return nil, err
		}
	}

	branchKind := func(index int) string {
		switch {
		case index == 0:
			return ir.KindThen
		case index == len(bodies)-1:
			return ir.KindElse
		default:
			return ir.KindElseIf
		}
	}
	for i, body := range bodies {
		branch := b.module.NewNode(branchKind(i), body.Location)
		ifNode.Branches = append(ifNode.Branches, branch)
		branch.CopyInPortsFrom(ifNode)
		branch.CopyOutPortsFrom(ifNode)
		branchScope := NewScope(branch)
		if _, err := b.buildExpr(body, branch.OutPorts, branchScope, branch); err != nil {
			return nil, err
		}
	}

	// output types come from the first branch; every other branch
	// must agree
	first := ifNode.Branches[0]
	for i, out := range ifNode.OutPorts {
		if out.Type == nil && first.OutPorts[i].Type != nil {
			out.Type = first.OutPorts[i].Type.Copy(out.Location)
		}
	}
	for _, branch := range ifNode.Branches[1:] {
		for i := range ifNode.OutPorts {
			if !types.Equal(first.OutPorts[i].Type, branch.OutPorts[i].Type) {
				return nil, errors.Newf(errors.TypeMismatch, n.Location,
					"branches of 'if' disagree on output %d: %s vs %s",
					i, first.OutPorts[i].Type, branch.OutPorts[i].Type)
			}
		}
	}

	sub := &SubIR{Nodes: []*ir.Node{ifNode}}
	if err := b.connectOutputs(ifNode, targets, region, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// buildDefinitions builds a sequence of ":=" statements into a
// region, adding one labeled output port per defined name and
// binding each name for the statements that follow.
func (b *Builder) buildDefinitions(statements []*parser.Assignment, node *ir.Node, checkShadowing bool) error {
	for _, statement := range statements {
		for _, ident := range statement.Identifiers {
			node.AddOutPort(nil, ident.Name, ident.Location)
		}
	}
	nodeScope := NewScope(node)
	index := 0
	for _, statement := range statements {
		count, err := b.numOut(statement.Values)
		if err != nil {
			return err
		}
		if count != len(statement.Identifiers) {
			return errors.Newf(errors.ArityMismatch, statement.Location,
				"%d name(s) defined, got %d value(s)", len(statement.Identifiers), count)
		}
		targets := node.OutPorts[index : index+count]
		if _, err := b.buildExpr(statement.Values, targets, nodeScope, node); err != nil {
			return err
		}
		for i, ident := range statement.Identifiers {
			source := b.module.SourcePort(targets[i])
			if source == nil {
				return errors.Newf(errors.InternalError, ident.Location,
					"definition of %q produced no value", ident.Name)
			}
			if err := nodeScope.Bind(ident.Name, source, checkShadowing); err != nil {
				return err
			}
		}
		index += count
	}
	return nil
}

func (b *Builder) buildLet(n *parser.Let, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	letNode := b.module.NewNodeIn(region, ir.KindLet, n.Location)
	if err := b.connectCompound(letNode, targets, scope, region); err != nil {
		return nil, err
	}

	init := b.module.NewNode(ir.KindInit, n.Location)
	letNode.Init = init
	init.CopyInPortsFrom(letNode)
	if err := b.buildDefinitions(n.Init, init, true); err != nil {
		return nil, err
	}

	body := b.module.NewNode(ir.KindBody, n.Body.Location)
	letNode.Body = body
	body.CopyInPortsFrom(letNode)
	body.CopyOutPortsFrom(letNode)
	body.CopyResultsPorts(init)
	bodyScope := NewScope(body)
	if _, err := b.buildExpr(n.Body, body.OutPorts, bodyScope, body); err != nil {
		return nil, err
	}

	for i, out := range letNode.OutPorts {
		if out.Type == nil && body.OutPorts[i].Type != nil {
			out.Type = body.OutPorts[i].Type.Copy(out.Location)
		}
	}

	sub := &SubIR{Nodes: []*ir.Node{letNode}}
	if err := b.connectOutputs(letNode, targets, region, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *Builder) buildLoop(n *parser.Loop, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	loop := b.module.NewNodeIn(region, ir.KindLoop, n.Location)
	if err := b.connectCompound(loop, targets, scope, region); err != nil {
		return nil, err
	}

	if len(n.Init) > 0 {
		init := b.module.NewNode(ir.KindInit, n.Location)
		loop.Init = init
		init.CopyInPortsFrom(loop)
		if err := b.buildDefinitions(n.Init, init, true); err != nil {
			return nil, err
		}
	}

	if len(n.Ranges) > 0 {
		if err := b.buildRangeGen(n.Ranges, loop); err != nil {
			return nil, err
		}
	}

	if len(n.Body) > 0 {
		body := b.module.NewNode(ir.KindBody, n.Location)
		loop.Body = body
		body.CopyInPortsFrom(loop)
		if loop.Init != nil {
			body.CopyResultsPorts(loop.Init)
		}
		if loop.RangeGen != nil {
			body.CopyResultsPorts(loop.RangeGen)
		}
		if err := b.buildDefinitions(n.Body, body, false); err != nil {
			return nil, err
		}
	}

	if n.Cond != nil {
		kind := ir.KindPreCondition
		if !n.Cond.Pre {
			kind = ir.KindPostCondition
		}
		condition := b.module.NewNode(kind, n.Cond.Location)
		loop.Condition = condition
		condition.CopyInPortsFrom(loop)
		for _, source := range []*ir.Node{loop.Init, loop.RangeGen, loop.Body} {
			if source != nil {
				condition.CopyResultsPorts(source)
			}
		}
		out := condition.AddOutPort(types.NewBoolean(n.Cond.Location), "output", n.Cond.Location)
		conditionScope := NewScope(condition)
		if _, err := b.buildExpr(n.Cond.Exp, []*ir.Port{out}, conditionScope, condition); err != nil {
			return nil, err
		}
	}

	if err := b.buildReturns(n, loop, targets); err != nil {
		return nil, err
	}

	sub := &SubIR{Nodes: []*ir.Node{loop}}
	if err := b.connectOutputs(loop, targets, region, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *Builder) buildRangeGen(ranges []*parser.RangeSpec, loop *ir.Node) error {
	rangeGen := b.module.NewNode(ir.KindRangeGen, loop.Location)
	loop.RangeGen = rangeGen
	rangeGen.CopyInPortsFrom(loop)
	rangeScope := NewScope(rangeGen)

	for _, spec := range ranges {
		valuePort := rangeGen.AddOutPort(nil, spec.Name.Name, spec.Name.Location)
		indexPort := rangeGen.AddOutPort(types.NewInteger(spec.Name.Location), spec.Name.Name+"_index", spec.Name.Location)

		scatter := b.module.NewNodeIn(rangeGen, ir.KindScatter, spec.Location)
		input := scatter.AddInPort(nil, "input", spec.Location)

		if spec.Over != nil {
			if _, err := b.buildExpr(spec.Over, []*ir.Port{input}, rangeScope, rangeGen); err != nil {
				return err
			}
		} else {
			numeric := b.module.NewNodeIn(rangeGen, ir.KindRangeNumeric, spec.Location)
			left := numeric.AddInPort(types.NewInteger(spec.Location), "left boundary", spec.Location)
			right := numeric.AddInPort(types.NewInteger(spec.Location), "right boundary", spec.Location)
			out := numeric.AddOutPort(types.NewStream(types.NewInteger(spec.Location), spec.Location), "range output", spec.Location)
			if _, err := b.buildExpr(spec.From, []*ir.Port{left}, rangeScope, rangeGen); err != nil {
				return err
			}
			if _, err := b.buildExpr(spec.To, []*ir.Port{right}, rangeScope, rangeGen); err != nil {
				return err
			}
			if _, err := b.module.Connect(out, input, rangeGen); err != nil {
				return err
			}
		}

		elementType := input.Type.ElementType()
		if elementType == nil {
			return errors.Newf(errors.TypeMismatch, spec.Location,
				"attempting to iterate over non-iterable object: %s", input.Type)
		}
		element := scatter.AddOutPort(elementType.Copy(spec.Name.Location), "element", spec.Location)
		indexOut := scatter.AddOutPort(types.NewInteger(spec.Location), "index", spec.Location)
		if _, err := b.module.Connect(element, valuePort, rangeGen); err != nil {
			return err
		}
		if _, err := b.module.Connect(indexOut, indexPort, rangeGen); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildReturns(n *parser.Loop, loop *ir.Node, targets []*ir.Port) error {
	if len(n.Returns) != len(targets) {
		return errors.Newf(errors.ArityMismatch, n.Location,
			"number of reductions must match the expected number of output values (%d expected, got %d)",
			len(targets), len(n.Returns))
	}
	returns := b.module.NewNode(ir.KindReturns, n.Location)
	loop.Returns = returns
	returns.CopyInPortsFrom(loop)
	for _, source := range []*ir.Node{loop.Init, loop.RangeGen, loop.Body} {
		if source != nil {
			returns.CopyResultsPorts(source)
		}
	}
	returnsScope := NewScope(returns)

	for i, reduction := range n.Returns {
		outPort := returns.AddOutPort(nil, fmt.Sprintf("reduction_%d", i), reduction.Location)

		node := b.module.NewNodeIn(returns, ir.KindReduction, reduction.Location)
		node.Operator = reduction.Operator
		condPort := node.AddInPort(types.NewBoolean(reduction.Location), "cond input", reduction.Location)
		valuePort := node.AddInPort(nil, "value input", reduction.Location)

		if _, err := b.buildExpr(reduction.Value, []*ir.Port{valuePort}, returnsScope, returns); err != nil {
			return err
		}
		if reduction.When != nil {
			if _, err := b.buildExpr(reduction.When, []*ir.Port{condPort}, returnsScope, returns); err != nil {
				return err
			}
		} else {
			// an absent gate is an always-true literal
			trueLiteral := b.module.LiteralNode(true, types.NewBoolean(reduction.Location), returns)
			if _, err := b.module.Connect(trueLiteral.OutPorts[0], condPort, returns); err != nil {
				return err
			}
		}

		var resultType *types.Type
		if valuePort.Type != nil {
			if reduction.Operator == "array" {
				resultType = types.NewArray(valuePort.Type.Copy(reduction.Location), reduction.Location)
			} else {
				resultType = valuePort.Type.Copy(reduction.Location)
			}
		}
		redOut := node.AddOutPort(resultType, "reduction output", reduction.Location)
		if _, err := b.module.Connect(redOut, outPort, returns); err != nil {
			return err
		}
		if loop.OutPorts[i].Type == nil && outPort.Type != nil {
			loop.OutPorts[i].Type = outPort.Type.Copy(loop.OutPorts[i].Location)
		}
	}
	return nil
}

func (b *Builder) buildArrayAccess(n *parser.ArrayAccess, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	// a literal 1-based index must be positive
	for _, index := range n.Indices {
		if lit, ok := index.(*parser.Literal); ok {
			if value, isInt := lit.Value.(int64); isInt && value <= 0 {
				return nil, errors.Newf(errors.LiteralBoundsError, lit.Location,
					"array index %d is out of bounds (indices are 1-based)", value)
			}
		}
	}

	first := b.module.NewNodeIn(region, ir.KindArrayAccess, n.Location)
	arrayPort := first.AddInPort(nil, "array", n.Location)
	indexPort := first.AddInPort(types.NewInteger(n.Location), "index", n.Location)
	out := first.AddOutPort(nil, "", n.Location)

	arraySub, err := b.buildExpr(n.Array, []*ir.Port{arrayPort}, scope, region)
	if err != nil {
		return nil, err
	}
	if len(arraySub.OutputEdges) != 1 {
		return nil, errors.New(errors.ArityMismatch,
			"expression must have exactly one output for array access", n.Location)
	}
	arrayType := arrayPort.Type
	if arrayType == nil || !arrayType.IsArray() {
		return nil, errors.Newf(errors.TypeMismatch, n.Location,
			"expression is not an array: %s", arrayType)
	}
	if len(n.Indices) > arrayType.Depth() {
		return nil, errors.New(errors.TypeMismatch,
			"number of array's dimensions is less than the depth of array access", n.Location)
	}
	out.Type = arrayType.ElementType().Copy(n.Location)

	result := &SubIR{Nodes: []*ir.Node{first}}
	result.Add(arraySub)
	indexSub, err := b.buildExpr(n.Indices[0], []*ir.Port{indexPort}, scope, region)
	if err != nil {
		return nil, err
	}
	result.Add(indexSub)

	last := first
	for _, index := range n.Indices[1:] {
		next := b.module.NewNodeIn(region, ir.KindArrayAccess, n.Location)
		previousType := last.OutPorts[0].Type
		nextArray := next.AddInPort(previousType.Copy(n.Location), "array", n.Location)
		nextIndex := next.AddInPort(types.NewInteger(n.Location), "index", n.Location)
		var elementType *types.Type
		if previousType.ElementType() != nil {
			elementType = previousType.ElementType().Copy(n.Location)
		} else {
			elementType = previousType.Copy(n.Location)
		}
		next.AddOutPort(elementType, "", n.Location)

		chain, err := b.module.Connect(last.OutPorts[0], nextArray, region)
		if err != nil {
			return nil, err
		}
		result.InternalEdges = append(result.InternalEdges, chain)
		indexSub, err := b.buildExpr(index, []*ir.Port{nextIndex}, scope, region)
		if err != nil {
			return nil, err
		}
		result.Nodes = append(result.Nodes, next)
		result.Add(indexSub)
		last = next
	}

	edge, err := b.module.Connect(last.OutPorts[0], targets[0], region)
	if err != nil {
		return nil, err
	}
	result.OutputEdges = append(result.OutputEdges, edge)
	return result, nil
}

func (b *Builder) buildArrayInit(n *parser.ArrayInit, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindArrayInit, n.Location)
	for i := range n.Items {
		node.AddInPort(nil, fmt.Sprintf("item#%d", i), n.Location)
	}
	out := node.AddOutPort(nil, "initialized array", n.Location)

	result := &SubIR{Nodes: []*ir.Node{node}}
	for i, item := range n.Items {
		sub, err := b.buildExpr(item, []*ir.Port{node.InPorts[i]}, scope, region)
		if err != nil {
			return nil, err
		}
		result.Add(sub)
	}
	reference := node.InPorts[0].Type
	for _, p := range node.InPorts[1:] {
		if p.Type == nil || reference == nil || p.Type.Kind != reference.Kind {
			return nil, errors.New(errors.TypeMismatch,
				"all array items must have the same type", n.Location)
		}
	}
	out.Type = types.NewArray(reference.Copy(n.Location), n.Location)

	edge, err := b.module.Connect(out, targets[0], region)
	if err != nil {
		return nil, err
	}
	result.OutputEdges = append(result.OutputEdges, edge)
	return result, nil
}

func (b *Builder) buildRecordInit(n *parser.RecordInit, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindRecordInit, n.Location)
	for _, field := range n.Fields {
		node.AddInPort(nil, field.Name, n.Location)
		node.PortToNameIndex = append(node.PortToNameIndex, field.Name)
	}
	out := node.AddOutPort(nil, "initialized record", n.Location)

	result := &SubIR{Nodes: []*ir.Node{node}}
	var fields []types.Field
	for i, field := range n.Fields {
		sub, err := b.buildExpr(field.Value, []*ir.Port{node.InPorts[i]}, scope, region)
		if err != nil {
			return nil, err
		}
		result.Add(sub)
		fields = append(fields, types.Field{Name: field.Name, Type: node.InPorts[i].Type})
	}
	out.Type = types.NewRecord(fields, n.Location)

	edge, err := b.module.Connect(out, targets[0], region)
	if err != nil {
		return nil, err
	}
	result.OutputEdges = append(result.OutputEdges, edge)
	return result, nil
}

func (b *Builder) buildRecordAccess(n *parser.RecordAccess, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindRecordAccess, n.Location)
	node.Field = n.Field
	in := node.AddInPort(nil, "record", n.Location)
	recordSub, err := b.buildExpr(n.Record, []*ir.Port{in}, scope, region)
	if err != nil {
		return nil, err
	}
	if in.Type == nil || in.Type.Kind != types.Record {
		return nil, errors.Newf(errors.TypeMismatch, n.Location,
			"expression is not a record: %s", in.Type)
	}
	fieldType := in.Type.Field(n.Field)
	if fieldType == nil {
		return nil, errors.Newf(errors.TypeMismatch, n.Location,
			"record %s has no field %q", in.Type, n.Field)
	}
	out := node.AddOutPort(fieldType.Copy(n.Location), "", n.Location)
	edge, err := b.module.Connect(out, targets[0], region)
	if err != nil {
		return nil, err
	}
	return recordSub.Add(&SubIR{Nodes: []*ir.Node{node}, OutputEdges: []*ir.Edge{edge}}), nil
}

func (b *Builder) buildOldValue(n *parser.OldValue, targets []*ir.Port, scope *Scope, region *ir.Node) (*SubIR, error) {
	node := b.module.NewNodeIn(region, ir.KindOldValue, n.Location)
	in := node.AddInPort(nil, "", n.Location)
	identSub, err := b.buildIdentifier(n.Ident, []*ir.Port{in}, scope, region)
	if err != nil {
		return nil, err
	}
	var outType *types.Type
	if in.Type != nil {
		outType = in.Type.Copy(n.Location)
	}
	out := node.AddOutPort(outType, "", n.Location)
	edge, err := b.module.Connect(out, targets[0], region)
	if err != nil {
		return nil, err
	}
	return identSub.Add(&SubIR{Nodes: []*ir.Node{node}, OutputEdges: []*ir.Edge{edge}}), nil
}
