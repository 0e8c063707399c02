// internal/optimizer/optimizer.go
//
// Local graph rewrites applied iteratively until fixpoint: constant
// folding, algebraic simplification, conditional collapsing, let
// inlining, single-use function inlining and dead-node elimination.
package optimizer

import (
	"math"

	"sisalc/internal/config"
	"sisalc/internal/ir"
	"sisalc/internal/types"
)

type Optimizer struct {
	module *ir.Module
	cfg    config.OptimizerConfig
}

func New(m *ir.Module, cfg *config.Config) *Optimizer {
	return &Optimizer{module: m, cfg: cfg.Optimizer}
}

// Optimize runs the rewrite passes until no pass changes the graph
// or the iteration cap is reached. Pass ordering matters: folding
// runs before simplification, collapsing before let inlining, dead
// elimination last.
func (o *Optimizer) Optimize() error {
	if !o.cfg.Enabled {
		return nil
	}
	for iteration := 0; iteration < o.cfg.MaxIterations; iteration++ {
		changed := false
		if o.cfg.ConstantFolding {
			folded, err := o.foldConstants()
			if err != nil {
				return err
			}
			changed = changed || folded
		}
		if o.cfg.AlgebraicSimplify {
			simplified, err := o.simplifyAlgebraic()
			if err != nil {
				return err
			}
			changed = changed || simplified
		}
		if o.cfg.ConditionalCollapse {
			collapsed, err := o.collapseConditionals()
			if err != nil {
				return err
			}
			changed = changed || collapsed
		}
		if o.cfg.LetInlining {
			inlined, err := o.inlineLets()
			if err != nil {
				return err
			}
			changed = changed || inlined
		}
		if o.cfg.FunctionInlining {
			inlined, err := o.inlineSingleUseFunctions()
			if err != nil {
				return err
			}
			changed = changed || inlined
		}
		if o.cfg.DeadElimination {
			changed = o.removeDead() || changed
		}
		if !changed {
			return nil
		}
	}
	return nil
}

func (o *Optimizer) alive(n *ir.Node) bool {
	return o.module.Node(n.ID) == n
}

// ---- constant folding ----

func (o *Optimizer) foldConstants() (bool, error) {
	changed := false
	for _, bin := range o.module.NodesNamed(ir.KindBinary) {
		if !o.alive(bin) {
			continue
		}
		folded, err := o.foldBinary(bin)
		if err != nil {
			return changed, err
		}
		changed = changed || folded
	}
	for _, un := range o.module.NodesNamed(ir.KindUnary) {
		if !o.alive(un) {
			continue
		}
		folded, err := o.foldUnary(un)
		if err != nil {
			return changed, err
		}
		changed = changed || folded
	}
	return changed, nil
}

func (o *Optimizer) foldBinary(bin *ir.Node) (bool, error) {
	m := o.module
	left := m.SourceNode(bin.InPorts[0])
	right := m.SourceNode(bin.InPorts[1])
	if left == nil || right == nil || left.Name != ir.KindLiteral || right.Name != ir.KindLiteral {
		return false, nil
	}
	value, ok := evalBinary(bin.Operator, left.Value, right.Value)
	if !ok {
		return false, nil
	}
	outType := bin.OutPorts[0].Type
	value = convertValue(value, outType)

	parent := m.ParentOf(bin)
	lit := m.LiteralNode(value, outType, parent)
	for _, e := range append([]*ir.Edge{}, m.EdgesFrom(bin.OutPorts[0])...) {
		m.ReattachOrigin(e, lit.OutPorts[0])
	}
	m.DeleteNode(bin, true)
	o.deleteIfUnused(left)
	o.deleteIfUnused(right)
	return true, nil
}

func (o *Optimizer) foldUnary(un *ir.Node) (bool, error) {
	m := o.module
	arg := m.SourceNode(un.InPorts[0])
	if arg == nil {
		return false, nil
	}
	if arg.Name == ir.KindLiteral {
		value, ok := evalUnary(un.Operator, arg.Value)
		if !ok {
			return false, nil
		}
		outType := un.OutPorts[0].Type
		value = convertValue(value, outType)
		parent := m.ParentOf(un)
		lit := m.LiteralNode(value, outType, parent)
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(un.OutPorts[0])...) {
			m.ReattachOrigin(e, lit.OutPorts[0])
		}
		m.DeleteNode(un, true)
		o.deleteIfUnused(arg)
		return true, nil
	}
	if un.Operator == "+" {
		// +x degenerates to its operand
		source := m.SourcePort(un.InPorts[0])
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(un.OutPorts[0])...) {
			m.ReattachOrigin(e, source)
		}
		m.DeleteNode(un, true)
		return true, nil
	}
	return false, nil
}

// deleteIfUnused removes a node once nothing consumes its outputs
func (o *Optimizer) deleteIfUnused(n *ir.Node) {
	if !o.alive(n) {
		return
	}
	for _, p := range n.OutPorts {
		if len(o.module.EdgesFrom(p)) > 0 {
			return
		}
	}
	o.module.DeleteNode(n, true)
}

// deleteSubtree removes the operand subtree feeding a node once it
// became unreachable
func (o *Optimizer) deleteSubtree(n *ir.Node) {
	// a value entering through a boundary comes from the enclosing
	// function or region, which is not part of the subtree
	if n == nil || n.Name == ir.KindFunction || n.IsCluster() {
		return
	}
	nodes, _, _ := o.module.TraceBack(n)
	// delete leaves last so the usage guard sees detached consumers
	for i := len(nodes) - 1; i >= 0; i-- {
		o.deleteIfUnused(nodes[i])
	}
	o.deleteIfUnused(n)
}

// ---- algebraic simplification ----

func (o *Optimizer) simplifyAlgebraic() (bool, error) {
	changed := false
	for _, bin := range o.module.NodesNamed(ir.KindBinary) {
		if !o.alive(bin) {
			continue
		}
		simplified, err := o.simplifyBinary(bin)
		if err != nil {
			return changed, err
		}
		changed = changed || simplified
	}
	return changed, nil
}

func (o *Optimizer) simplifyBinary(bin *ir.Node) (bool, error) {
	m := o.module
	left := m.SourceNode(bin.InPorts[0])
	right := m.SourceNode(bin.InPorts[1])

	// keepOperand rewires the binary's consumers straight to the
	// surviving operand and drops the literal one
	keepOperand := func(keep int, literal *ir.Node) {
		source := m.SourcePort(bin.InPorts[keep])
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(bin.OutPorts[0])...) {
			m.ReattachOrigin(e, source)
		}
		m.DeleteNode(bin, true)
		o.deleteSubtree(literal)
	}
	// keepLiteral replaces the binary with the literal value and
	// deletes the now-unreachable other operand subtree
	keepLiteral := func(literal *ir.Node, other *ir.Node) {
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(bin.OutPorts[0])...) {
			m.ReattachOrigin(e, literal.OutPorts[0])
		}
		m.DeleteNode(bin, true)
		o.deleteSubtree(other)
	}

	if left != nil && left.Name == ir.KindLiteral {
		switch {
		case isZero(left.Value):
			switch bin.Operator {
			case "+":
				keepOperand(1, left)
				return true, nil
			case "*", "**", "/":
				keepLiteral(left, right)
				return true, nil
			case "-":
				// 0-x becomes unary minus
				parent := m.ParentOf(bin)
				un := m.UnaryNode("-", bin.OutPorts[0].Type, parent)
				for _, e := range append([]*ir.Edge{}, m.EdgesFrom(bin.OutPorts[0])...) {
					m.ReattachOrigin(e, un.OutPorts[0])
				}
				feeding := m.EdgeTo(bin.InPorts[1])
				if feeding != nil {
					if err := m.ReattachTarget(feeding, un.InPorts[0]); err != nil {
						return false, err
					}
				}
				m.DeleteNode(bin, true)
				o.deleteIfUnused(left)
				return true, nil
			}
		case isOne(left.Value):
			switch bin.Operator {
			case "*":
				keepOperand(1, left)
				return true, nil
			case "**":
				keepLiteral(left, right)
				return true, nil
			}
		case left.Value == true:
			switch bin.Operator {
			case "+", "|":
				keepLiteral(left, right)
				return true, nil
			case "*", "&":
				keepOperand(1, left)
				return true, nil
			}
		case left.Value == false:
			switch bin.Operator {
			case "*", "&":
				keepLiteral(left, right)
				return true, nil
			case "+", "|":
				keepOperand(1, left)
				return true, nil
			}
		}
	}
	if right != nil && right.Name == ir.KindLiteral {
		switch {
		case isZero(right.Value):
			switch bin.Operator {
			case "+", "-":
				keepOperand(0, right)
				return true, nil
			case "*":
				keepLiteral(right, left)
				return true, nil
			case "**":
				// x**0 is always one
				parent := m.ParentOf(bin)
				one := m.LiteralNode(convertValue(int64(1), bin.OutPorts[0].Type), bin.OutPorts[0].Type, parent)
				for _, e := range append([]*ir.Edge{}, m.EdgesFrom(bin.OutPorts[0])...) {
					m.ReattachOrigin(e, one.OutPorts[0])
				}
				m.DeleteNode(bin, true)
				o.deleteSubtree(left)
				o.deleteIfUnused(right)
				return true, nil
			}
		case isOne(right.Value):
			switch bin.Operator {
			case "*", "**", "/":
				keepOperand(0, right)
				return true, nil
			}
		case right.Value == true:
			switch bin.Operator {
			case "+", "|":
				keepLiteral(right, left)
				return true, nil
			case "*", "&":
				keepOperand(0, right)
				return true, nil
			}
		case right.Value == false:
			switch bin.Operator {
			case "*", "&":
				keepLiteral(right, left)
				return true, nil
			case "+", "|":
				keepOperand(0, right)
				return true, nil
			}
		}
	}
	return false, nil
}

// ---- conditional collapse ----

func (o *Optimizer) collapseConditionals() (bool, error) {
	changed := false
	for _, ifNode := range o.module.NodesNamed(ir.KindIf) {
		if !o.alive(ifNode) || ifNode.Condition == nil || len(ifNode.Condition.OutPorts) == 0 {
			continue
		}
		cond := o.module.SourceNode(ifNode.Condition.OutPorts[0])
		if cond == nil || cond.Name != ir.KindLiteral {
			continue
		}
		var branch *ir.Node
		if cond.Value == true {
			branch = ifNode.Branches[0]
		} else if len(ifNode.Branches) == 2 {
			branch = ifNode.Branches[len(ifNode.Branches)-1]
		} else {
			// a false first condition with elseif alternatives cannot
			// be decided from this literal alone
			continue
		}
		if err := o.module.SwapComplex(branch, ifNode); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// ---- let inlining ----

func (o *Optimizer) inlineLets() (bool, error) {
	changed := false
	for _, let := range o.module.NodesNamed(ir.KindLet) {
		if !o.alive(let) || let.Init == nil || let.Body == nil {
			continue
		}
		inlined, err := o.inlineLet(let)
		if err != nil {
			return changed, err
		}
		changed = changed || inlined
	}
	return changed, nil
}

// inlineLet replaces literal-bound init values with fresh literals at
// each use site; a fully drained init lets the body swap in for the
// whole let.
func (o *Optimizer) inlineLet(let *ir.Node) (bool, error) {
	m := o.module
	init := let.Init
	body := let.Body
	changed := false

	for _, port := range append([]*ir.Port{}, init.OutPorts...) {
		producer := m.SourceNode(port)
		if producer == nil {
			continue
		}
		bodyPort := body.InPortByLabel(port.Label)
		if bodyPort == nil {
			continue
		}
		// a binding the body never reads disappears with its subtree
		if len(m.EdgesFrom(bodyPort)) == 0 {
			if feeding := m.EdgeTo(port); feeding != nil {
				m.DeleteEdge(feeding)
			}
			if !producer.IsCluster() {
				o.deleteSubtree(producer)
			}
			removeInPort(body, bodyPort)
			removeOutPort(init, port)
			changed = true
			continue
		}
		if producer.Name != ir.KindLiteral {
			continue
		}
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(bodyPort)...) {
			lit := m.LiteralNode(producer.Value, port.Type, body)
			m.ReattachOrigin(e, lit.OutPorts[0])
		}
		removeInPort(body, bodyPort)
		m.DeleteNode(producer, true)
		removeOutPort(init, port)
		changed = true
	}

	if len(init.Nodes) == 0 && len(init.OutPorts) == 0 {
		if err := m.SwapComplex(body, let); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func removeInPort(n *ir.Node, port *ir.Port) {
	for i, p := range n.InPorts {
		if p == port {
			n.InPorts = append(n.InPorts[:i], n.InPorts[i+1:]...)
			break
		}
	}
	for i, p := range n.InPorts {
		p.Index = i
	}
}

func removeOutPort(n *ir.Node, port *ir.Port) {
	for i, p := range n.OutPorts {
		if p == port {
			n.OutPorts = append(n.OutPorts[:i], n.OutPorts[i+1:]...)
			break
		}
	}
	for i, p := range n.OutPorts {
		p.Index = i
	}
}

// ---- dead subgraph elimination ----

func (o *Optimizer) removeDead() bool {
	changed := false
	for _, n := range o.module.AllNodes() {
		if !o.alive(n) || n.Name == ir.KindFunction || n.IsCluster() {
			continue
		}
		if len(n.OutPorts) == 0 {
			continue
		}
		used := false
		for _, p := range n.OutPorts {
			if len(o.module.EdgesFrom(p)) > 0 {
				used = true
				break
			}
		}
		if used {
			continue
		}
		o.module.DeleteNode(n, true)
		changed = true
	}
	return changed
}

// ---- literal arithmetic ----

func isZero(v interface{}) bool {
	switch value := v.(type) {
	case int64:
		return value == 0
	case float64:
		return value == 0
	}
	return false
}

func isOne(v interface{}) bool {
	switch value := v.(type) {
	case int64:
		return value == 1
	case float64:
		return value == 1
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case int64:
		return float64(value), true
	case float64:
		return value, true
	}
	return 0, false
}

func bothInt(l, r interface{}) (int64, int64, bool) {
	left, leftOK := l.(int64)
	right, rightOK := r.(int64)
	return left, right, leftOK && rightOK
}

func evalBinary(operator string, l, r interface{}) (interface{}, bool) {
	if lb, lok := l.(bool); lok {
		rb, rok := r.(bool)
		if !rok {
			return nil, false
		}
		switch operator {
		case "&", "*":
			return lb && rb, true
		case "|", "+":
			return lb || rb, true
		case "=":
			return lb == rb, true
		case "~=":
			return lb != rb, true
		}
		return nil, false
	}
	if li, ri, ok := bothInt(l, r); ok {
		switch operator {
		case "+":
			return li + ri, true
		case "-":
			return li - ri, true
		case "*":
			return li * ri, true
		case "/":
			if ri == 0 {
				return nil, false
			}
			return li / ri, true
		case "**":
			result := int64(1)
			for i := int64(0); i < ri; i++ {
				result *= li
			}
			if ri < 0 {
				return nil, false
			}
			return result, true
		case "<":
			return li < ri, true
		case ">":
			return li > ri, true
		case "<=":
			return li <= ri, true
		case ">=":
			return li >= ri, true
		case "=":
			return li == ri, true
		case "~=":
			return li != ri, true
		}
		return nil, false
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, false
	}
	switch operator {
	case "+":
		return lf + rf, true
	case "-":
		return lf - rf, true
	case "*":
		return lf * rf, true
	case "/":
		if rf == 0 {
			return nil, false
		}
		return lf / rf, true
	case "**":
		return math.Pow(lf, rf), true
	case "<":
		return lf < rf, true
	case ">":
		return lf > rf, true
	case "<=":
		return lf <= rf, true
	case ">=":
		return lf >= rf, true
	case "=":
		return lf == rf, true
	case "~=":
		return lf != rf, true
	}
	return nil, false
}

func evalUnary(operator string, v interface{}) (interface{}, bool) {
	switch operator {
	case "+":
		return v, true
	case "-":
		switch value := v.(type) {
		case int64:
			return -value, true
		case float64:
			return -value, true
		}
	case "!":
		if value, ok := v.(bool); ok {
			return !value, true
		}
	}
	return nil, false
}

// convertValue coerces a folded result to the node's declared output
// type
func convertValue(v interface{}, t *types.Type) interface{} {
	if t == nil {
		return v
	}
	switch t.Kind {
	case types.Integer:
		switch value := v.(type) {
		case float64:
			return int64(value)
		case int64:
			return value
		}
	case types.Real:
		switch value := v.(type) {
		case int64:
			return float64(value)
		case float64:
			return value
		}
	case types.Boolean:
		if value, ok := v.(bool); ok {
			return value
		}
	}
	return v
}
