// internal/optimizer/inline.go
//
// Single-use function inlining: a user function called exactly once
// is expanded at the call site into a Let whose Init evaluates the
// argument expressions and whose Body is the function's interior.
package optimizer

import (
	"sisalc/internal/ir"
)

func (o *Optimizer) inlineSingleUseFunctions() (bool, error) {
	changed := false
	for _, fn := range append([]*ir.Node{}, o.module.Functions...) {
		if !o.alive(fn) || fn.FunctionName == "main" {
			continue
		}
		calls := o.callsTo(fn.FunctionName)
		if len(calls) != 1 {
			continue
		}
		call := calls[0]
		if o.containingFunction(call) == fn {
			continue // recursive single call, nothing to gain
		}
		if err := o.inlineCall(fn, call); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func (o *Optimizer) callsTo(name string) []*ir.Node {
	var calls []*ir.Node
	for _, n := range o.module.NodesNamed(ir.KindFunctionCall) {
		if n.Callee == name {
			calls = append(calls, n)
		}
	}
	return calls
}

func (o *Optimizer) containingFunction(n *ir.Node) *ir.Node {
	current := n
	for {
		parent := o.module.ParentOf(current)
		if parent == nil {
			if current.Name == ir.KindFunction {
				return current
			}
			return nil
		}
		current = parent
	}
}

func (o *Optimizer) inlineCall(fn, call *ir.Node) error {
	m := o.module
	parent := m.ParentOf(call)
	if parent == nil {
		return nil
	}

	var variables, outputs []ir.PortSpec
	for _, p := range fn.InPorts {
		variables = append(variables, ir.PortSpec{Label: p.Label, Type: p.Type})
	}
	for _, p := range fn.OutPorts {
		outputs = append(outputs, ir.PortSpec{Label: p.Label, Type: p.Type})
	}
	let := m.LetNode(parent, variables, outputs)
	init := let.Init
	body := let.Body

	// the let mirrors its parent's inputs so the body's free values
	// keep flowing
	for i := range parent.InPorts {
		if _, err := m.Connect(parent.InPorts[i], let.InPorts[i], parent); err != nil {
			return err
		}
	}

	// move the argument computations into the init region
	argNodes, argInternal, argInput := m.TraceBack(call)
	for _, n := range argNodes {
		if n == call {
			continue
		}
		if parent != nil {
			parent.RemoveChild(n)
		}
		if !init.Contains(n) {
			init.Nodes = append(init.Nodes, n)
		}
	}
	for _, e := range argInternal {
		if e.Region != nil {
			e.Region.Edges = dropEdge(e.Region.Edges, e)
		}
		e.Region = init
		init.Edges = append(init.Edges, e)
	}
	// boundary inputs re-enter through the init's own boundary
	for _, e := range argInput {
		index := portIndex(parent.InPorts, e.From)
		target := e.To
		m.DeleteEdge(e)
		if index >= 0 {
			if _, err := m.Connect(init.InPorts[index], target, init); err != nil {
				return err
			}
		}
	}
	// each argument value becomes an init binding
	for i, p := range call.InPorts {
		if e := m.EdgeTo(p); e != nil {
			if err := m.ReattachTarget(e, init.OutPorts[i]); err != nil {
				return err
			}
		}
	}

	// the function's interior becomes the let body
	for _, n := range fn.Nodes {
		body.Nodes = append(body.Nodes, n)
	}
	for _, e := range fn.Edges {
		e.Region = body
		body.Edges = append(body.Edges, e)
	}
	for i, p := range fn.InPorts {
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(p)...) {
			m.ReattachOrigin(e, body.InPorts[i])
		}
	}
	for i, p := range fn.OutPorts {
		if e := m.EdgeTo(p); e != nil {
			if err := m.ReattachTarget(e, body.OutPorts[i]); err != nil {
				return err
			}
		}
	}
	for i, p := range call.OutPorts {
		for _, e := range append([]*ir.Edge{}, m.EdgesFrom(p)...) {
			m.ReattachOrigin(e, let.OutPorts[i])
		}
	}

	fn.Nodes = nil
	fn.Edges = nil
	m.RemoveFunction(fn.FunctionName)
	m.DeleteNode(fn, false)
	m.DeleteNode(call, true)
	return nil
}

func portIndex(ports []*ir.Port, p *ir.Port) int {
	for i, candidate := range ports {
		if candidate == p {
			return i
		}
	}
	return -1
}

func dropEdge(edges []*ir.Edge, e *ir.Edge) []*ir.Edge {
	for i, candidate := range edges {
		if candidate == e {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}
