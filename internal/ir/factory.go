// internal/ir/factory.go
package ir

import (
	"sisalc/internal/types"
)

// PortSpec names a value for the Let factory
type PortSpec struct {
	Label string
	Type  *types.Type
}

// LiteralNode creates a new literal node inside container
func (m *Module) LiteralNode(value interface{}, t *types.Type, container *Node) *Node {
	lit := m.NewNodeIn(container, KindLiteral, "")
	lit.Value = value
	var copied *types.Type
	if t != nil {
		copied = t.Copy(t.Location)
	}
	lit.AddOutPort(copied, "value", "")
	return lit
}

// BinaryNode creates an algebraic binary node inside container
func (m *Module) BinaryNode(operator string, leftType, rightType *types.Type, container *Node) *Node {
	bin := m.NewNodeIn(container, KindBinary, "")
	bin.Operator = operator
	bin.AddInPort(leftType, "left operand", "")
	bin.AddInPort(rightType, "right operand", "")
	bin.AddOutPort(leftType.Copy(leftType.Location), "output", "")
	return bin
}

// UnaryNode creates an algebraic unary node inside container
func (m *Module) UnaryNode(operator string, valueType *types.Type, container *Node) *Node {
	un := m.NewNodeIn(container, KindUnary, "")
	un.Operator = operator
	un.AddInPort(valueType, "input", "")
	un.AddOutPort(valueType.Copy(valueType.Location), "output", "")
	return un
}

// LetNode builds an empty Let with Init and Body regions wired for
// the given bound variables and output values. Used by the optimizer
// when a single-use function call is expanded in place. Body inputs
// carry the bound variables first, then copies of container's inputs,
// matching the layout the builder produces.
func (m *Module) LetNode(container *Node, variables, outputs []PortSpec) *Node {
	let := m.NewNodeIn(container, KindLet, "")
	init := m.NewNode(KindInit, "")
	body := m.NewNode(KindBody, "")
	let.Init = init
	let.Body = body

	copyContainerPorts := func(n *Node) {
		for _, p := range container.InPorts {
			copied := CopyPort(p, n.ID)
			copied.Index = len(n.InPorts)
			n.InPorts = append(n.InPorts, copied)
		}
	}

	copyType := func(t *types.Type) *types.Type {
		if t == nil {
			return nil
		}
		return t.Copy(t.Location)
	}

	copyContainerPorts(let)
	copyContainerPorts(init)
	for _, v := range variables {
		init.AddOutPort(copyType(v.Type), v.Label, "")
		body.AddInPort(copyType(v.Type), v.Label, "")
	}
	copyContainerPorts(body)
	for _, o := range outputs {
		let.AddOutPort(copyType(o.Type), o.Label, "")
		body.AddOutPort(copyType(o.Type), o.Label, "")
	}
	return let
}
